package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/dshills/crewsettings/internal/settings"
)

// settingRow is one line of the show output.
type settingRow struct {
	Path     string
	Value    any
	Default  any
	Modified bool
	Restart  bool
}

// settingRows flattens st in schema display order. Lobby settings follow
// the top-level keys under their dotted path.
func settingRows(st settings.Settings) []settingRow {
	doc := st.Document()
	defaults := settings.Defaults().Document()
	root := settings.Describe()

	var rows []settingRow
	for _, name := range root.Keys() {
		prop := root.Properties[name]
		if prop.IsObject() {
			for _, child := range prop.Keys() {
				path := name + "." + child
				v, _ := lookup(doc, path)
				d, _ := lookup(defaults, path)
				rows = append(rows, newRow(path, v, d, false))
			}
			continue
		}
		rows = append(rows, newRow(name, doc[name], defaults[name], settings.Key(name).NeedsRestart()))
	}
	return rows
}

func newRow(path string, v, d any, restart bool) settingRow {
	return settingRow{
		Path:     path,
		Value:    v,
		Default:  d,
		Modified: formatValue(v) != formatValue(d),
		Restart:  restart,
	}
}

func renderTable(w io.Writer, rows []settingRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Setting", "Value", "Default", ""})

	for _, r := range rows {
		value := formatValue(r.Value)
		if r.Modified {
			value = text.FgYellow.Sprint(value)
		}
		marker := ""
		if r.Restart {
			marker = text.FgHiBlack.Sprint("restart")
		}
		t.AppendRow(table.Row{r.Path, value, formatValue(r.Default), marker})
	}
	t.Render()
}

func renderPlain(w io.Writer, rows []settingRow) {
	for _, r := range rows {
		fmt.Fprintf(w, "%s=%s\n", r.Path, formatValue(r.Value))
	}
}

// formatValue renders strings bare and everything else as compact JSON.
func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
