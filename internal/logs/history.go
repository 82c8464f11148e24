package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const defaultPollInterval = 250 * time.Millisecond

// Read returns the last limit entries in path matching filter (all of them
// when limit <= 0) and the offset to resume following from. A missing file
// yields no entries.
func Read(path string, filter Filter, limit int) ([]Entry, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var entries []Entry
	var ring []Entry
	idx, count := 0, 0
	if limit > 0 {
		ring = make([]Entry, limit)
	}
	offset, err := scanEntries(file, filter, func(e Entry) {
		if limit <= 0 {
			entries = append(entries, e)
			return
		}
		ring[idx] = e
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		return entries, offset, nil
	}

	entries = make([]Entry, count)
	if count == limit {
		for i := 0; i < count; i++ {
			entries[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(entries, ring[:count])
	}
	return entries, offset, nil
}

// Follow calls fn for every matching entry appended after offset until ctx
// is cancelled. A truncated file restarts from the beginning.
func Follow(ctx context.Context, path string, offset int64, filter Filter, interval time.Duration, fn func(Entry)) error {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, filter, fn)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, filter Filter, fn func(Entry)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	read, err := scanEntries(file, filter, fn)
	if err != nil {
		return offset, err
	}
	return offset + read, nil
}

// scanEntries decodes complete lines from r and returns how many bytes were
// consumed. A trailing partial line is left for the next read.
func scanEntries(r io.Reader, filter Filter, fn func(Entry)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return consumed, nil
			}
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		entry, perr := ParseEntry(line)
		if perr != nil {
			continue
		}
		if filter.Match(entry) {
			fn(entry)
		}
	}
}
