package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	name := fs.String("save", "game", "save name (ignored with -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	cmdType := fs.String("type", "", "command type filter (commands)")
	_ = fs.Parse(args)

	q := "saves"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, *name, "index.sqlite")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	var rows *sql.Rows
	switch q {
	case "saves":
		rows, err = db.Query(`SELECT tick,path,game_id,city,schema_version,saved_at FROM saves ORDER BY tick DESC LIMIT ?`, *limit)
	case "ticks":
		rows, err = db.Query(`SELECT tick,digest,commands,happiness,science,busy,idle,offline FROM ticks ORDER BY tick DESC LIMIT ?`, *limit)
	case "commands":
		if t := strings.TrimSpace(*cmdType); t != "" {
			rows, err = db.Query(`SELECT tick,seq,type,cmd_json FROM commands WHERE type=? ORDER BY tick DESC, seq DESC LIMIT ?`, t, *limit)
		} else {
			rows, err = db.Query(`SELECT tick,seq,type,cmd_json FROM commands ORDER BY tick DESC, seq DESC LIMIT ?`, *limit)
		}
	case "heartbeats":
		rows, err = db.Query(`SELECT tick,game_id,city,buildings,techs,is_offline,sent_at FROM heartbeats ORDER BY tick DESC LIMIT ?`, *limit)
	case "catalogs":
		rows, err = db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want saves|ticks|commands|heartbeats|catalogs)")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	defer rows.Close()
	if err := printRows(rows); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

// printRows writes each row as one JSON object keyed by column name.
func printRows(rows *sql.Rows) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				m[c] = string(b)
				continue
			}
			m[c] = vals[i]
		}
		printJSON(m)
	}
	return rows.Err()
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
