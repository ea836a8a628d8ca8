// Package report renders build history as PDF documents.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jung-kurt/gofpdf"
	"github.com/metal3d/go-slugify"

	"github.com/BadgerOps/recoveryusb/internal/store"
)

const (
	cellHeight = 6.0
	leftMargin = 15.0
	tableWidth = 186.0
)

// event table column widths: seq, kind, subject, path, result
var columns = [...]float64{12, 20, 50, 34, 70}

// FileName is the report name for run: the start date and a slug of the label.
func FileName(run *store.BuildRun) string {
	label := strings.ToLower(slugify.Marshal(run.Label))
	if label == "" {
		label = fmt.Sprintf("run-%d", run.ID)
	}
	return fmt.Sprintf("%s_%s.pdf", run.StartTime.Format("2006-01-02"), label)
}

// Write renders run and its events to a PDF in outDir and returns its path.
func Write(run *store.BuildRun, events []store.BuildEvent, outDir string) (string, error) {
	if run == nil {
		return "", fmt.Errorf("no build run to report")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	filename := filepath.Join(outDir, FileName(run))

	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetTitle("Recovery USB build "+run.Label, true)
	pdf.AliasNbPages("")
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	makeHeader(run, pdf)
	makeSummary(run, events, pdf)
	makeEventTable(events, pdf)

	if err := pdf.OutputFileAndClose(filename); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return filename, nil
}

func makeHeader(run *store.BuildRun, pdf *gofpdf.Fpdf) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetXY(leftMargin, 15)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(tableWidth, 10, tr("Recovery USB Build Report"), "", 1, "L", false, 0, "")
	pdf.SetX(leftMargin)
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetDrawColor(220, 220, 220)
	pdf.SetLineWidth(0.4)
	pdf.CellFormat(tableWidth, 9, tr(run.Label), "B", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func makeSummary(run *store.BuildRun, events []store.BuildEvent, pdf *gofpdf.Fpdf) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	duration := "in progress"
	if !run.EndTime.IsZero() {
		duration = run.EndTime.Sub(run.StartTime).Truncate(time.Second).String()
	}
	rows := [][2]string{
		{"Status", run.Status},
		{"Started", run.StartTime.Format("2006-01-02 15:04:05")},
		{"Duration", duration},
		{"Manifest", run.ManifestPath},
		{"Source", run.SourceDir},
		{"Patch", run.OverlayDir},
		{"Target", run.TargetDir},
		{"Events", humanize.Comma(int64(len(events)))},
		{"Failures", humanize.Comma(int64(run.Failures))},
	}
	if run.ErrorMessage != "" {
		rows = append(rows, [2]string{"Error", run.ErrorMessage})
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		pdf.SetX(leftMargin)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(30, cellHeight, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(tableWidth-30, cellHeight, tr(row[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}

func makeEventTable(events []store.BuildEvent, pdf *gofpdf.Fpdf) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	header := func() {
		pdf.SetX(leftMargin)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(32, 162, 126)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetLineWidth(0)
		for i, title := range []string{"#", "Kind", "Subject", "Path", "Result"} {
			pdf.CellFormat(columns[i], cellHeight, title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()

	pdf.SetFont("Helvetica", "", 8)
	even := false
	for _, ev := range events {
		if pdf.GetY()+cellHeight > pageHeight-bottom-20 {
			pdf.AddPage()
			header()
			pdf.SetFont("Helvetica", "", 8)
		}

		pdf.SetX(leftMargin)
		pdf.SetDrawColor(200, 200, 200)
		if even {
			pdf.SetFillColor(255, 255, 255)
		} else {
			pdf.SetFillColor(235, 235, 235)
		}
		if ev.Failed {
			pdf.SetTextColor(180, 0, 0)
		} else {
			pdf.SetTextColor(0, 0, 0)
		}

		cells := []string{
			fmt.Sprint(ev.Seq),
			ev.Kind,
			fit(pdf, tr(ev.Subject), columns[2]),
			fit(pdf, tr(ev.Path), columns[3]),
			fit(pdf, tr(ev.Result), columns[4]),
		}
		for i, text := range cells {
			border := "L"
			if i == 0 {
				border = ""
			}
			pdf.CellFormat(columns[i], cellHeight, text, border, 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		even = !even
	}
	pdf.SetTextColor(0, 0, 0)
}

// fit shortens s with an ellipsis until it fits in width.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	const pad = 2
	if pdf.GetStringWidth(s) <= width-pad {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width-pad {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
