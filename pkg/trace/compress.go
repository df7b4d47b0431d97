package trace

import "strings"

// Compress rewrites a raw condition trace so that each loop is represented
// the way static chains represent it: at most one "entered" head followed by
// the events of its first iteration body (itself compressed), or a single
// "not entered" head for a zero-iteration pass. The eventual loop-exit False
// after entry is dropped along with every repeated iteration.
//
// Entry and exit are decided on the raw value; normalization flips do not
// apply here. The input slice is never mutated.
func Compress(events []Event) []Event {
	n := len(events)
	if n <= 1 {
		return append([]Event(nil), events...)
	}
	out := make([]Event, 0, n)
	i := 0
	for i < n {
		ev := events[i]
		if !isLoop(ev) {
			out = append(out, ev)
			i++
			continue
		}
		if !ev.Val {
			// zero-iteration loop, keep verbatim
			out = append(out, ev)
			i++
			continue
		}
		out = append(out, ev)

		// The next occurrence of this loop head delimits the first
		// iteration's body.
		j := i + 1
		for j < n {
			if isLoop(events[j]) && events[j].CondHash == ev.CondHash {
				break
			}
			j++
		}
		if j > i+1 {
			out = append(out, Compress(events[i+1:j])...)
		}

		// Skip past the last raw-False record for this head, if any;
		// it is the loop exit and static chains never encode it.
		k := -1
		for p := j; p < n; p++ {
			ep := events[p]
			if isLoop(ep) && ep.CondHash == ev.CondHash && !ep.Val {
				k = p
			}
		}
		if k >= 0 {
			i = k + 1
		} else {
			i = j
		}
	}
	return out
}

func isLoop(ev Event) bool {
	return strings.EqualFold(ev.CondKind, KindLoop)
}
