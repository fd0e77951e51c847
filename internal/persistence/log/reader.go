package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/steve-haar/door-simulator/internal/sim/world"
)

// ListFiles returns dir's "<prefix>-*.jsonl.zst" files in chronological order.
func ListFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, ".jsonl.zst") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	// Hour stamps sort lexically.
	sort.Strings(out)
	return out, nil
}

// ScanFile calls fn with each raw JSON line of a compressed log file.
func ScanFile(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadTicks decodes every tick entry under runDir/events in order.
func ReadTicks(runDir string, fn func(world.TickLogEntry) error) error {
	files, err := ListFiles(filepath.Join(runDir, "events"), "events")
	if err != nil {
		return err
	}
	for _, path := range files {
		err := ScanFile(path, func(line []byte) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			return fn(e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
