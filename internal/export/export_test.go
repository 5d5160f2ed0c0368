package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"

	"github.com/okian/coinboard/internal/domain/model"
)

func ranked() []model.Chapter {
	a := model.Chapter{ID: "CH002", Name: "EPIC", Members: 25, CurrentRank: 1}
	a.Performance = model.PerformanceSnapshot{TotalCoins: 22440, Efficiency: 91}
	a.Metrics.Visitors = model.NewProgress(12, 30)
	a.Metrics.Retention = model.NewRetention(3, 2, 1)
	b := model.Chapter{ID: "CH001", Name: "ACHIEVERZ, INC", Members: 20, CurrentRank: 2}
	b.Performance.TotalCoins = 9000
	return []model.Chapter{a, b}
}

func TestParseFormat(t *testing.T) {
	convey.Convey("Given format names", t, func() {
		convey.Convey("Then known names parse in any case", func() {
			f, err := ParseFormat(" XLSX ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(f, convey.ShouldEqual, FormatXLSX)
		})

		convey.Convey("Then unknown names are rejected", func() {
			_, err := ParseFormat("pdf")
			convey.So(errors.Is(err, ErrUnsupportedFormat), convey.ShouldBeTrue)
			convey.So(errors.Is(Write(&bytes.Buffer{}, Format("pdf"), nil), ErrUnsupportedFormat), convey.ShouldBeTrue)
		})

		convey.Convey("Then filenames carry the UTC date", func() {
			at := time.Date(2025, 7, 4, 23, 30, 0, 0, time.FixedZone("X", -3*3600))
			convey.So(FormatCSV.Filename(at), convey.ShouldEqual, "bni_independence_games_2025-07-05.csv")
			convey.So(FormatCSV.ContentType(), convey.ShouldStartWith, "text/csv")
		})
	})
}

func TestWriteCSV(t *testing.T) {
	convey.Convey("Given ranked chapters", t, func() {
		var buf bytes.Buffer
		convey.So(Write(&buf, FormatCSV, ranked()), convey.ShouldBeNil)

		convey.Convey("Then the CSV has a header and rows in rank order", func() {
			rows, err := csv.NewReader(&buf).ReadAll()
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(rows), convey.ShouldEqual, 3)
			convey.So(rows[0], convey.ShouldResemble, header)
			convey.So(rows[1][:6], convey.ShouldResemble, []string{"1", "EPIC", "CH002", "25", "22440", "91"})
			convey.So(rows[1][7], convey.ShouldEqual, "12")
			convey.So(rows[1][14], convey.ShouldEqual, "4")
			convey.So(rows[2][1], convey.ShouldEqual, "ACHIEVERZ, INC")
		})
	})
}

func TestWriteXLSX(t *testing.T) {
	convey.Convey("Given ranked chapters", t, func() {
		var buf bytes.Buffer
		convey.So(Write(&buf, FormatXLSX, ranked()), convey.ShouldBeNil)

		convey.Convey("Then the workbook holds one standings sheet", func() {
			f, err := excelize.OpenReader(&buf)
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = f.Close() }()

			convey.So(f.GetSheetList(), convey.ShouldResemble, []string{SheetName})
			rows, err := f.GetRows(SheetName)
			convey.So(err, convey.ShouldBeNil)
			convey.So(len(rows), convey.ShouldEqual, 3)
			convey.So(rows[0][4], convey.ShouldEqual, "Total Coins")
			convey.So(rows[1][1], convey.ShouldEqual, "EPIC")
			convey.So(rows[1][4], convey.ShouldEqual, "22440")
		})
	})
}

func TestWriteJSON(t *testing.T) {
	convey.Convey("Given ranked chapters", t, func() {
		var buf bytes.Buffer
		convey.So(Write(&buf, FormatJSON, ranked()), convey.ShouldBeNil)

		convey.Convey("Then the JSON array keeps rank order", func() {
			var out []model.Chapter
			convey.So(json.Unmarshal(buf.Bytes(), &out), convey.ShouldBeNil)
			convey.So(len(out), convey.ShouldEqual, 2)
			convey.So(out[0].Name, convey.ShouldEqual, "EPIC")
		})
	})
}
