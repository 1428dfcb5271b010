package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"deckharvest/internal/recordstore"

	"github.com/jedib0t/go-pretty/v6/table"
)

type output interface {
	Add(record recordstore.Record) error
	Flush() error
}

func newOutput(format string, w io.Writer) (output, error) {
	switch format {
	case "", "log":
		return &logOutput{}, nil
	case "table":
		return newTableOutput(w), nil
	case "json":
		return jsonOutput{encoder: json.NewEncoder(w)}, nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

type logOutput struct {
	count int
}

func (o *logOutput) Add(record recordstore.Record) error {
	o.count++
	p := record.Presentation
	slog.Info(
		"found presentation",
		"n", o.count,
		"page", record.Page,
		"title", p.Title,
		"slides", p.SlideCount,
		"url", p.Url,
		"account", p.Account.String(),
	)
	return nil
}

func (o *logOutput) Flush() error {
	return nil
}

type tableOutput struct {
	t table.Writer
}

func newTableOutput(w io.Writer) tableOutput {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Page", "Title", "Slides", "Account", "Url"})
	return tableOutput{t: t}
}

func (o tableOutput) Add(record recordstore.Record) error {
	p := record.Presentation
	account := ""
	if p.Account != nil {
		account = p.Account.Name
	}
	o.t.AppendRow(table.Row{o.t.Length() + 1, record.Page, p.Title, p.SlideCount, account, p.Url})
	return nil
}

func (o tableOutput) Flush() error {
	o.t.Render()
	return nil
}

type jsonAccount struct {
	Url  string `json:"url"`
	Name string `json:"name"`
}

type jsonRecord struct {
	Kind        string       `json:"kind"`
	Query       string       `json:"query"`
	Page        int          `json:"page"`
	HarvestedAt time.Time    `json:"harvested_at"`
	Id          string       `json:"id"`
	Url         string       `json:"url"`
	Title       string       `json:"title"`
	SlideCount  int          `json:"slide_count"`
	Account     *jsonAccount `json:"account"`
}

// jsonOutput writes one json object per line.
type jsonOutput struct {
	encoder *json.Encoder
}

func (o jsonOutput) Add(record recordstore.Record) error {
	p := record.Presentation
	out := jsonRecord{
		Kind:        string(record.Kind),
		Query:       record.Query,
		Page:        record.Page,
		HarvestedAt: record.HarvestedAt,
		Id:          p.Id,
		Url:         p.Url,
		Title:       p.Title,
		SlideCount:  p.SlideCount,
	}
	if p.Account != nil {
		out.Account = &jsonAccount{Url: p.Account.Url, Name: p.Account.Name}
	}
	return o.encoder.Encode(out)
}

func (o jsonOutput) Flush() error {
	return nil
}
