package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// cpuTimes são os contadores agregados da linha "cpu" de /proc/stat.
type cpuTimes struct {
	idle  uint64
	total uint64
}

func parseProcStat(r io.Reader) (cpuTimes, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		var t cpuTimes
		for i, f := range fields[1:] {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return cpuTimes{}, err
			}
			t.total += v
			// idle + iowait
			if i == 3 || i == 4 {
				t.idle += v
			}
		}
		return t, nil
	}
	if err := sc.Err(); err != nil {
		return cpuTimes{}, err
	}
	return cpuTimes{}, errors.New("cpu line not found")
}

func usagePercent(a, b cpuTimes) float64 {
	if b.total <= a.total {
		return 0
	}
	total := float64(b.total - a.total)
	idle := float64(b.idle - a.idle)
	pct := (total - idle) / total * 100
	if pct < 0 {
		return 0
	}
	return pct
}

// cpuSampler mede o uso de CPU do host em um intervalo curto.
type cpuSampler struct {
	path     string
	interval time.Duration
}

func (s cpuSampler) read() (cpuTimes, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return cpuTimes{}, err
	}
	defer f.Close()
	return parseProcStat(f)
}

func (s cpuSampler) Percent(ctx context.Context) (float64, error) {
	a, err := s.read()
	if err != nil {
		return 0, err
	}
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(s.interval):
	}
	b, err := s.read()
	if err != nil {
		return 0, err
	}
	return usagePercent(a, b), nil
}
