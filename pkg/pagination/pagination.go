package pagination

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	mcperrors "github.com/ndtools/mcp-client/pkg/errors"
)

const (
	// DefaultLimit is the page size a server uses when paging is enabled
	// without an explicit size
	DefaultLimit = 50

	// MaxLimit is the largest page size a server hands out
	MaxLimit = 200

	// MaxPages bounds how many pages Collect requests
	MaxPages = 1000
)

// ErrInvalidCursor is returned for a cursor this package did not issue
var ErrInvalidCursor = errors.New("invalid pagination cursor")

const cursorPrefix = "offset:"

// EncodeCursor returns the cursor addressing offset
func EncodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + strconv.Itoa(offset)))
}

// DecodeCursor returns the offset a cursor addresses. The empty cursor is
// the first page.
func DecodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	digits, ok := strings.CutPrefix(string(raw), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	offset, err := strconv.Atoi(digits)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCursor, cursor)
	}
	return offset, nil
}

// ClampLimit maps a requested page size onto (0, MaxLimit]
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Page returns the page of items starting at cursor and the cursor of the
// following page, empty on the last one. A limit of zero or less returns
// everything from the cursor on.
func Page[T any](items []T, cursor string, limit int) ([]T, string, error) {
	offset, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if offset > len(items) {
		return nil, "", fmt.Errorf("%w: offset %d beyond %d items", ErrInvalidCursor, offset, len(items))
	}

	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	page := items[offset:end]

	next := ""
	if end < len(items) {
		next = EncodeCursor(end)
	}
	return page, next, nil
}

// FetchFunc requests one page. It returns the items and the next cursor,
// empty when there are no more pages.
type FetchFunc[T any] func(ctx context.Context, cursor string) ([]T, string, error)

// Collect follows cursors from the first page until the peer stops
// returning one and concatenates the pages in order. A peer that repeats a
// cursor or exceeds MaxPages is a protocol error.
func Collect[T any](ctx context.Context, fetch FetchFunc[T]) ([]T, error) {
	all := make([]T, 0)
	seen := make(map[string]bool)
	cursor := ""

	for pages := 0; ; pages++ {
		if pages == MaxPages {
			return nil, mcperrors.ProtocolError(fmt.Sprintf("peer returned more than %d pages", MaxPages))
		}
		if err := ctx.Err(); err != nil {
			return nil, mcperrors.OperationCancelled("list", err)
		}

		items, next, err := fetch(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		if next == "" {
			return all, nil
		}
		if seen[next] {
			return nil, mcperrors.ProtocolError(fmt.Sprintf("peer repeated pagination cursor %q", next))
		}
		seen[next] = true
		cursor = next
	}
}
