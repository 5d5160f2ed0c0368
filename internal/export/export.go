// Package export renders the committed standings for download.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/okian/coinboard/internal/domain/model"
)

// Format is a supported download format.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

const filePrefix = "bni_independence_games_"

// ErrUnsupportedFormat is returned for any format not listed above.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// header is the column order shared by the tabular formats.
var header = []string{ //nolint:gochecknoglobals // fixed column order
	"Rank", "Chapter", "ID", "Members", "Total Coins", "Efficiency",
	"Referrals", "Visitors", "Attendance", "Testimonials", "Trainings",
	"Inductions", "Renewals", "Drops", "Retention Score",
}

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnsupportedFormat)
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json; charset=utf-8"
	}
}

// Filename is the dated download name for f.
func (f Format) Filename(at time.Time) string {
	return filePrefix + at.UTC().Format(model.DateLayout) + "." + string(f)
}

// Write renders ranked in format f.
func Write(w io.Writer, f Format, ranked []model.Chapter) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, ranked)
	case FormatXLSX:
		return WriteXLSX(w, ranked)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ranked); err != nil {
			return fmt.Errorf("encode json export: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%q: %w", f, ErrUnsupportedFormat)
}

func row(c model.Chapter) []int {
	m := c.Metrics
	return []int{
		c.CurrentRank, 0, 0, c.Members, c.Performance.TotalCoins, c.Performance.Efficiency,
		m.Referrals.Current, m.Visitors.Current, m.Attendance.Current, m.Testimonials.Current, m.Trainings.Current,
		m.Retention.Inductions, m.Retention.Renewals, m.Retention.Drops, m.Retention.Score,
	}
}

// record renders one chapter as strings in header order.
func record(c model.Chapter) []string {
	values := row(c)
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	out[1] = c.Name
	out[2] = c.ID
	return out
}
