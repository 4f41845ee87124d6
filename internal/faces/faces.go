// internal/faces/faces.go
//
// Provides the symbol set dealt onto the board.
//
// Responsibilities:
//   - Load faces from a configured file or fall back to the embedded default.
//   - Validate the set: exactly PairCount distinct, non-empty symbols.
//
// Initialization behavior (Init):
//   1. If path is set, read one face per line from that file.
//   2. Otherwise use assets/faces.txt.
//   Blank lines and lines starting with "#" are skipped in both cases.
//
// Initialization runs once (sync.Once); later calls return the first result.

package faces

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/robalobadob/memory/apps/go-server/assets"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
)

var (
	initOnce   sync.Once
	loaded     []string
	initialErr error
)

// Init loads the face set exactly once.
func Init(path string) error {
	initOnce.Do(func() {
		var list []string
		var err error
		if path != "" {
			list, err = readFile(path)
		} else {
			list, err = readEmbedded()
		}
		if err != nil {
			initialErr = fmt.Errorf("faces: load: %w", err)
			return
		}
		if err := Validate(list); err != nil {
			initialErr = err
			return
		}
		loaded = list
	})
	return initialErr
}

// Faces returns a copy of the loaded set, or game.DefaultFaces before Init.
func Faces() []string {
	if len(loaded) == 0 {
		return append([]string(nil), game.DefaultFaces...)
	}
	return append([]string(nil), loaded...)
}

// Validate checks the grid constraint: exactly PairCount distinct faces.
func Validate(list []string) error {
	if len(list) != game.PairCount {
		return fmt.Errorf("faces: need exactly %d faces, got %d", game.PairCount, len(list))
	}
	seen := make(map[string]struct{}, len(list))
	for _, f := range list {
		if f == "" {
			return errors.New("faces: empty face")
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("faces: duplicate face %q", f)
		}
		seen[f] = struct{}{}
	}
	return nil
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

func readEmbedded() ([]string, error) {
	f, err := assets.Faces()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

// parse reads one face per line, trimming and skipping blanks and comments.
func parse(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, s)
	}
	return out, sc.Err()
}
