package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/okian/coinboard/internal/domain/model"
)

// WriteCSV writes a header row followed by one row per chapter in rank order.
func WriteCSV(w io.Writer, ranked []model.Chapter) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, c := range ranked {
		if err := cw.Write(record(c)); err != nil {
			return fmt.Errorf("write csv row %s: %w", c.Name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
