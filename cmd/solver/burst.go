package main

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

type burstReport struct {
	Sent     int
	Passed   int
	ByStatus map[int]int
}

func newBurstCmd(client func() *http.Client) *cobra.Command {
	var (
		n      int
		rounds int
		wait   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "burst URL",
		Short: "Fire N parallel requests per round and report how many passed (observes the adaptive budget)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for i := 0; i < rounds; i++ {
				if i > 0 {
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					case <-time.After(wait):
					}
				}
				rep := burst(cmd.Context(), client(), args[0], n)
				fmt.Fprintf(out, "round %d: %d/%d passed %s\n", i+1, rep.Passed, rep.Sent, formatStatuses(rep.ByStatus))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "requests", "n", 8, "parallel requests per round")
	cmd.Flags().IntVar(&rounds, "rounds", 1, "number of rounds")
	cmd.Flags().DurationVar(&wait, "wait", 12*time.Second, "pause between rounds (longer than the window)")
	return cmd
}

func burst(ctx context.Context, c *http.Client, url string, n int) burstReport {
	rep := burstReport{Sent: n, ByStatus: make(map[int]int)}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, err := doGet(ctx, c, url, "", "")
			if err != nil {
				status = 0
			}
			mu.Lock()
			rep.ByStatus[status]++
			if status == http.StatusOK {
				rep.Passed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return rep
}

func formatStatuses(m map[int]int) string {
	codes := make([]int, 0, len(m))
	for c := range m {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	s := "("
	for i, c := range codes {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%d:%d", c, m[c])
	}
	return s + ")"
}
