// Package export writes ticket reports as xlsx workbooks.
package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mtlprog/eventpass/internal/domain"
	"github.com/mtlprog/eventpass/internal/pricing"
)

const (
	ticketsSheet = "Tickets"
	summarySheet = "Summary"
)

// Converter renders a payment-token price in a display currency.
type Converter interface {
	Convert(price, currency string, rates domain.Prices) string
}

// Report is the input of a ticket workbook.
type Report struct {
	Asset       domain.Asset
	Account     string
	Slots       []domain.AccessResult
	Currency    string
	Rates       domain.Prices
	GeneratedAt time.Time
}

// ticketColumn describes one column of the Tickets sheet.
type ticketColumn struct {
	header string
	value  func(row ticketRow) any
}

type ticketRow struct {
	index   int
	service domain.Service
	slot    domain.AccessResult
	agg     *pricing.Aggregator
	conv    Converter
	report  Report
}

var ticketColumns = []ticketColumn{
	{header: "Event", value: func(r ticketRow) any { return r.index + 1 }},
	{header: "Service", value: func(r ticketRow) any { return serviceName(r.service) }},
	{header: "Datatoken", value: func(r ticketRow) any { return r.service.DatatokenAddress }},
	{header: "Pricing", value: func(r ticketRow) any {
		if !r.slot.Known() {
			return ""
		}
		return string(r.slot.Details.Type)
	}},
	{header: "Price", value: func(r ticketRow) any {
		price, _ := r.agg.ServicePrice(r.index)
		return price
	}},
	{header: "Converted", value: func(r ticketRow) any {
		price, ok := r.agg.ServicePrice(r.index)
		if !ok {
			return ""
		}
		return r.conv.Convert(price, r.report.Currency, r.report.Rates)
	}},
	{header: "Owned", value: func(r ticketRow) any { return yesNo(r.agg.HasAccess(r.index)) }},
	{header: "Proof", value: func(r ticketRow) any {
		if !r.slot.Known() {
			return ""
		}
		return r.slot.Details.ValidOrderTx
	}},
	{header: "Status", value: func(r ticketRow) any {
		if r.slot.Err != nil {
			return string(domain.KindOf(r.slot.Err))
		}
		return "ok"
	}},
}

// Build creates the workbook. The caller must Close the returned file.
func Build(r Report, conv Converter) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", ticketsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("creating %s sheet: %w", summarySheet, err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	agg := pricing.NewAggregator(r.Slots)
	if err := writeTickets(f, r, agg, conv, bold); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, r, agg, conv, bold); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write builds the workbook and writes it to w.
func Write(w io.Writer, r Report, conv Converter) error {
	f, err := Build(r, conv)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeTickets(f *excelize.File, r Report, agg *pricing.Aggregator, conv Converter, headerStyle int) error {
	headers := make([]any, len(ticketColumns))
	for i, col := range ticketColumns {
		headers[i] = col.header
	}
	if err := f.SetSheetRow(ticketsSheet, "A1", &headers); err != nil {
		return fmt.Errorf("writing ticket headers: %w", err)
	}
	if err := f.SetRowStyle(ticketsSheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("styling ticket headers: %w", err)
	}

	for i, svc := range r.Asset.Services {
		var slot domain.AccessResult
		if i < len(r.Slots) {
			slot = r.Slots[i]
		}
		row := ticketRow{index: i, service: svc, slot: slot, agg: agg, conv: conv, report: r}

		values := make([]any, len(ticketColumns))
		for c, col := range ticketColumns {
			values[c] = col.value(row)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ticketsSheet, cell, &values); err != nil {
			return fmt.Errorf("writing ticket row %d: %w", i+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(ticketColumns))
	if err != nil {
		return err
	}
	return f.SetColWidth(ticketsSheet, "A", lastCol, 18)
}

func writeSummary(f *excelize.File, r Report, agg *pricing.Aggregator, conv Converter, labelStyle int) error {
	spent := strconv.FormatInt(agg.TotalSpent(), 10)
	rows := [][]any{
		{"Asset", r.Asset.ID},
		{"Name", r.Asset.Name},
		{"Account", r.Account},
		{"Tickets unlocked", agg.TotalUnlocked()},
		{"Total spent", spent},
		{"Total spent (" + r.Currency + ")", conv.Convert(spent, r.Currency, r.Rates)},
		{"Generated at", r.GeneratedAt.UTC().Format(time.RFC3339)},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetColStyle(summarySheet, "A", labelStyle); err != nil {
		return fmt.Errorf("styling summary labels: %w", err)
	}
	return f.SetColWidth(summarySheet, "A", "B", 28)
}

func serviceName(s domain.Service) string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
