// Package console prints what a person at a terminal should see: progress
// lines, a spinner while a job is polled, and tables of query results.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/graceinfra/ibmisteps/internal/models"
	"github.com/graceinfra/ibmisteps/types"
	"github.com/pterm/pterm"
)

type Console struct {
	OutputStyle types.OutputStyle
	Spinner     *spinner.Spinner
	Out         io.Writer
	Err         io.Writer
}

func New(style types.OutputStyle) *Console {
	return &Console{
		OutputStyle: style,
		Spinner: spinner.New(
			spinner.CharSets[11],
			100*time.Millisecond,
			spinner.WithHiddenCursor(true),
			spinner.WithWriter(os.Stderr)),
		Out: os.Stdout,
		Err: os.Stderr,
	}
}

func (c *Console) human() bool {
	return c.OutputStyle == types.StyleHuman || c.OutputStyle == types.StyleHumanVerbose
}

func (c *Console) Info(msg string, args ...any) {
	if c.human() {
		fmt.Fprintf(c.Out, msg+"\n", args...)
	}
}

func (c *Console) Verbose(msg string, args ...any) {
	if c.OutputStyle == types.StyleHumanVerbose {
		fmt.Fprintf(c.Out, msg+"\n", args...)
	}
}

func (c *Console) Error(msg string, args ...any) {
	if c.human() {
		fmt.Fprintf(c.Err, "Error: "+msg+"\n", args...)
	}
}

// Json prints data as indented JSON in machine mode only.
func (c *Console) Json(data any) {
	if c.OutputStyle == types.StyleMachineJSON {
		encoded, _ := json.MarshalIndent(data, "", "  ")
		fmt.Fprintln(c.Out, string(encoded))
	}
}

// --- Spinner ---

func (c *Console) StartSpinner(text string) {
	if c.human() && c.Spinner != nil {
		c.Spinner.Suffix = " " + text
		c.Spinner.Start()
	}
}

func (c *Console) StopSpinner() {
	if c.human() && c.Spinner != nil {
		c.Spinner.Stop()
	}
}

// --- Tables ---

// Table renders rows under a header row.
func (c *Console) Table(header []string, rows [][]string) error {
	if !c.human() {
		return nil
	}
	data := pterm.TableData{header}
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	fmt.Fprintln(c.Out, out)
	return nil
}

// SQLResult prints a row set as a table, or the update count.
func (c *Console) SQLResult(result *models.SQLResult) error {
	if c.OutputStyle == types.StyleMachineJSON {
		c.Json(result)
		return nil
	}
	if !result.IsQuery() {
		c.Info("%d row(s) updated", result.UpdateCount)
		return nil
	}

	header := make([]string, 0, result.ColumnCount())
	for _, col := range result.Columns {
		header = append(header, col.Name)
	}
	rows := make([][]string, 0, result.RowCount())
	for _, row := range result.Rows {
		cells := make([]string, 0, len(header))
		for _, col := range result.Columns {
			cells = append(cells, cellText(row, col))
		}
		rows = append(rows, cells)
	}
	if err := c.Table(header, rows); err != nil {
		return err
	}
	c.Info("%d row(s)", result.RowCount())
	return nil
}

// cellText pads DECIMAL and NUMERIC cells to the column's scale.
func cellText(row models.SQLRow, col models.SQLColumn) string {
	switch strings.ToUpper(col.TypeName) {
	case "DECIMAL", "NUMERIC":
		if f, ok := row.Float64(col.Name); ok {
			return strconv.FormatFloat(f, 'f', int(col.Scale), 64)
		}
	}
	return row.String(col.Name)
}

// SpooledFiles prints one line per spooled file.
func (c *Console) SpooledFiles(files models.SpooledFiles) error {
	if c.OutputStyle == types.StyleMachineJSON {
		c.Json(files)
		return nil
	}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{f.Name, strconv.Itoa(f.Number), strconv.FormatInt(f.Size, 10), f.UserData, f.FileName()})
	}
	return c.Table([]string{"FILE", "NUMBER", "SIZE", "USER DATA", "SAVED AS"}, rows)
}

// CommandResult prints the command outcome and its messages.
func (c *Console) CommandResult(result *models.CommandResult) {
	if c.OutputStyle == types.StyleMachineJSON {
		c.Json(result)
		return
	}
	if result.Successful {
		c.Info("✓ %s", result.Command)
	} else {
		c.Error("%s failed", result.Command)
	}
	if len(result.Messages) > 0 {
		c.Info("%s", result.PrettyMessages("  "))
	}
}

// SaveFile prints a save file's description and the objects it holds.
func (c *Console) SaveFile(content *models.SaveFileContent) error {
	if c.OutputStyle == types.StyleMachineJSON {
		c.Json(content)
		return nil
	}
	c.Info("%s/%s  %s  target release %s  %d bytes", content.Library(), content.Name(), content.Description(), content.TargetRelease(), content.Size())
	rows := make([][]string, 0, len(content.Entries()))
	for _, e := range content.Entries() {
		rows = append(rows, []string{e.Library, e.Name, e.Type, e.ExtendedObjectAttribute, strconv.FormatInt(e.Size, 10)})
	}
	return c.Table([]string{"LIBRARY", "OBJECT", "TYPE", "ATTRIBUTE", "SIZE"}, rows)
}
