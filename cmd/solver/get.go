package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"flux-gateway/middleware/admission"
	"flux-gateway/middleware/admission/application"

	"github.com/spf13/cobra"
)

type challenge struct {
	Error      string `json:"error"`
	Challenge  string `json:"challenge"`
	Difficulty int    `json:"difficulty"`
}

type getResult struct {
	Status   int
	Body     string
	Solved   bool
	Solution string
	Took     time.Duration
}

func newGetCmd(client func() *http.Client) *cobra.Command {
	var (
		header      string
		maxAttempts uint64
	)
	cmd := &cobra.Command{
		Use:   "get URL",
		Short: "GET the URL; on 401 solve the proof-of-work and retry once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := fetch(cmd.Context(), client(), args[0], header, maxAttempts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Solved {
				fmt.Fprintf(out, "puzzle solved in %s, solution %s\n", res.Took.Round(time.Millisecond), res.Solution)
			}
			fmt.Fprintf(out, "status %d\n%s\n", res.Status, res.Body)
			return nil
		},
	}
	cmd.Flags().StringVar(&header, "header", admission.DefaultSolutionHeader, "header carrying the solution")
	cmd.Flags().Uint64Var(&maxAttempts, "max-attempts", 0, "give up after this many nonces (0 = unlimited)")
	return cmd
}

func fetch(ctx context.Context, c *http.Client, url, header string, maxAttempts uint64) (getResult, error) {
	status, body, err := doGet(ctx, c, url, "", "")
	if err != nil {
		return getResult{}, err
	}
	if status != http.StatusUnauthorized {
		return getResult{Status: status, Body: body}, nil
	}

	var ch challenge
	if err := json.Unmarshal([]byte(body), &ch); err != nil || ch.Challenge == "" {
		return getResult{Status: status, Body: body}, nil
	}

	start := time.Now()
	solution, ok := application.Solve(ch.Challenge, ch.Difficulty, maxAttempts)
	if !ok {
		return getResult{}, errors.New("no solution within max attempts")
	}
	took := time.Since(start)

	status, body, err = doGet(ctx, c, url, header, solution)
	if err != nil {
		return getResult{}, err
	}
	return getResult{Status: status, Body: body, Solved: true, Solution: solution, Took: took}, nil
}

func doGet(ctx context.Context, c *http.Client, url, header, value string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	if header != "" {
		req.Header.Set(header, value)
	}
	resp, err := c.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(b), nil
}
