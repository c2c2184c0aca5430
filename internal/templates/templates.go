package templates

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
)

//go:embed files/*
var TplFS embed.FS

// FuncMap is available to every scaffold template.
var FuncMap = template.FuncMap{
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
}

// ScaffoldData feeds the files written by 'ibmisteps init'.
type ScaffoldData struct {
	WorkspaceName string
	ServerName    string
	Host          string
	User          string
	Credentials   string
	Library       string
}

var libraryUnsafe = regexp.MustCompile(`[^A-Z0-9]+`)

// LibraryName derives a build library name from a workspace name: upper case,
// letters and digits only, at most 10 characters, starting with a letter.
func LibraryName(workspace string) string {
	name := libraryUnsafe.ReplaceAllString(strings.ToUpper(workspace), "")
	name = strings.TrimLeft(name, "0123456789")
	if name == "" {
		return "BUILD"
	}
	if len(name) > 10 {
		name = name[:10]
	}
	return name
}

// WriteTpl loads tplName from TplFS, executes it with data and FuncMap, and writes to outPath
func WriteTpl(tplName, outPath string, data any) error {
	return WriteTplWithFuncs(tplName, outPath, data, FuncMap)
}

// WriteTplWithFuncs loads tplName, adds funcs to the template, executes, and writes.
func WriteTplWithFuncs(tplName, outPath string, data any, funcMap template.FuncMap) error {
	t := template.New(filepath.Base(tplName))
	if funcMap != nil {
		t = t.Funcs(funcMap)
	}

	t, err := t.ParseFS(TplFS, tplName)
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", tplName, err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outPath, err)
	}
	defer f.Close()

	if err := t.Execute(f, data); err != nil {
		return fmt.Errorf("failed to render template %s: %w", tplName, err)
	}
	return nil
}
