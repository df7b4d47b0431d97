package align

import "github.com/condlab/chainmatch/pkg/trace"

// LCPLen counts leading positions where the (sid, value) pairs of the two
// sequences are identical.
func LCPLen(a, b []trace.Pair) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// LCSLen is the length of the longest common subsequence of the two
// (sid, value) pair sequences.
func LCSLen(a, b []trace.Pair) int {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = 1 + dp[i+1][j+1]
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}
	return dp[0][0]
}
