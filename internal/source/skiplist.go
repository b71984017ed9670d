package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"orthoinfer/internal/blob/core"
	"orthoinfer/pkg/domain"
)

// SkipList names reactions never inferred and pathways whose whole event
// closure is excluded.
type SkipList struct {
	Reactions []domain.DBID `json:"reactions"`
	Pathways  []domain.DBID `json:"pathways"`
}

// ParseSkipList accepts either a JSON object {"reactions":[..],"pathways":[..]}
// or plain text with one entry per line:
//
//	reaction 12345
//	pathway 67890
//	12345          (bare ids are reactions)
//
// '#' starts a comment.
func ParseSkipList(r io.Reader) (SkipList, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return SkipList{}, fmt.Errorf("read skip list: %w", err)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var sl SkipList
		if err := json.Unmarshal(trimmed, &sl); err != nil {
			return SkipList{}, fmt.Errorf("decode skip list: %w", err)
		}
		return sl, nil
	}

	var sl SkipList
	sc := bufio.NewScanner(bytes.NewReader(raw))
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		kind, value := "reaction", fields[0]
		if len(fields) == 2 {
			kind, value = strings.ToLower(fields[0]), fields[1]
		} else if len(fields) > 2 {
			return SkipList{}, fmt.Errorf("skip list line %d: too many fields", line)
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return SkipList{}, fmt.Errorf("skip list line %d: %w", line, err)
		}
		switch kind {
		case "reaction":
			sl.Reactions = append(sl.Reactions, domain.DBID(n))
		case "pathway":
			sl.Pathways = append(sl.Pathways, domain.DBID(n))
		default:
			return SkipList{}, fmt.Errorf("skip list line %d: unknown kind %q", line, kind)
		}
	}
	return sl, sc.Err()
}

// LoadSkipList reads the skip list at key. An empty key or a missing blob
// yields an empty list.
func LoadSkipList(ctx context.Context, store core.Store, key string) (SkipList, error) {
	if key == "" {
		return SkipList{}, nil
	}
	raw, err := core.ReadAll(ctx, store, key)
	if errors.Is(err, core.ErrNotFound) {
		return SkipList{}, nil
	}
	if err != nil {
		return SkipList{}, err
	}
	return ParseSkipList(bytes.NewReader(raw))
}
