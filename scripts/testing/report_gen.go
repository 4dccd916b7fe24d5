// Command report_gen merges `go test -json` output with the TestPurpose
// annotations found in *_test.go files and writes JSON and Markdown reports.
//
//	go test -json ./... > test.json
//	go run ./scripts/testing -input test.json -out-json report.json -out-md report.md
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const modulePath = "github.com/cybercodeedulabs/cybercode-backend"

// Annotation is the metadata block above a test function.
type Annotation struct {
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Category   string `json:"category"`
	Type       string `json:"type"` // UT, SYSTEM, E2E
}

// Result is one test or subtest outcome.
type Result struct {
	Package    string     `json:"package"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	Elapsed    float64    `json:"elapsed_seconds"`
	Output     string     `json:"failure_output,omitempty"`
	Annotation Annotation `json:"annotation"`
}

// Report is the top-level document.
type Report struct {
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	NotRun      int       `json:"not_run"`
	Results     []Result  `json:"results"`
}

type event struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

var categories = []struct{ fragment, name string }{
	{"internal/compute", "Compute"},
	{"internal/quota", "Quota"},
	{"internal/host", "Host"},
	{"internal/naming", "Naming"},
	{"internal/terminal", "Terminal"},
	{"internal/identity", "AuthN"},
	{"internal/tenant", "Tenant"},
	{"internal/seed", "Fixtures"},
	{"internal/store", "Storage"},
	{"internal/audit", "Audit"},
	{"internal/config", "Config"},
	{"internal/observability", "Observability"},
	{"internal/transport/http", "API"},
	{"tests/system", "System"},
	{"tests/e2e", "End to End"},
}

func main() {
	input := flag.String("input", "", "go test -json output")
	outJSON := flag.String("out-json", "", "JSON report path")
	outMD := flag.String("out-md", "", "Markdown report path")
	title := flag.String("title", "Test Report", "report title")
	onlyType := flag.String("type", "", "keep only UT, SYSTEM or E2E results")
	flag.Parse()

	if *input == "" || (*outJSON == "" && *outMD == "") {
		fmt.Fprintln(os.Stderr, "usage: report_gen -input test.json [-out-json report.json] [-out-md report.md]")
		os.Exit(2)
	}

	annotations, err := scan(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}
	results, err := merge(*input, annotations)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *input, err)
		os.Exit(1)
	}
	if *onlyType != "" {
		kept := results[:0]
		for _, r := range results {
			if strings.EqualFold(r.Annotation.Type, *onlyType) {
				kept = append(kept, r)
			}
		}
		results = kept
	}

	report := summarize(*title, results)
	if *outJSON != "" {
		if err := writeJSON(*outJSON, report); err != nil {
			fmt.Fprintf(os.Stderr, "write json: %v\n", err)
			os.Exit(1)
		}
	}
	if *outMD != "" {
		if err := os.WriteFile(*outMD, []byte(markdown(report)), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write markdown: %v\n", err)
			os.Exit(1)
		}
	}

	if report.Failed > 0 {
		fmt.Printf("%d tests failed\n", report.Failed)
		os.Exit(1)
	}
}

// scan parses every test file under root and returns annotations keyed by
// "importpath.TestName".
func scan(root string) (map[string]Annotation, error) {
	out := map[string]Annotation{}
	fset := token.NewFileSet()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}

		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil
		}
		pkg := importPath(filepath.Dir(path))
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Test") || fn.Name.Name == "TestMain" {
				continue
			}
			out[pkg+"."+fn.Name.Name] = annotate(pkg, fn.Doc)
		}
		return nil
	})
	return out, err
}

func annotate(pkg string, doc *ast.CommentGroup) Annotation {
	a := Annotation{Category: category(pkg), Type: testType(pkg)}
	if doc == nil {
		return a
	}
	fields := map[string]*string{
		"TestPurpose:":  &a.Purpose,
		"Scope:":        &a.Scope,
		"Security:":     &a.Security,
		"Expected:":     &a.Expected,
		"Test Case ID:": &a.TestCaseID,
	}
	for _, c := range doc.List {
		line := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
		for prefix, dst := range fields {
			if rest, ok := strings.CutPrefix(line, prefix); ok {
				*dst = strings.TrimSpace(rest)
			}
		}
	}
	return a
}

func importPath(dir string) string {
	dir = filepath.ToSlash(filepath.Clean(dir))
	if dir == "." {
		return modulePath
	}
	return modulePath + "/" + dir
}

func testType(pkg string) string {
	rel := strings.TrimPrefix(pkg, modulePath+"/")
	if rest, ok := strings.CutPrefix(rel, "tests/"); ok {
		return strings.ToUpper(strings.SplitN(rest, "/", 2)[0])
	}
	return "UT"
}

func category(pkg string) string {
	for _, c := range categories {
		if strings.Contains(pkg, c.fragment) {
			return c.name
		}
	}
	return "Other"
}

// merge folds test events into results. Annotated tests that never ran
// are reported as "not run"; subtests inherit their parent's annotation.
func merge(path string, annotations map[string]Annotation) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	byKey := map[string]*Result{}
	for key, a := range annotations {
		pkg, name := splitKey(key)
		byKey[key] = &Result{Package: pkg, Name: name, Status: "not run", Annotation: a}
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var ev event
		if json.Unmarshal(sc.Bytes(), &ev) != nil || ev.Test == "" {
			continue
		}
		key := ev.Package + "." + ev.Test
		r, ok := byKey[key]
		if !ok {
			parent := strings.SplitN(ev.Test, "/", 2)[0]
			a, found := annotations[ev.Package+"."+parent]
			if !found {
				a = Annotation{Category: category(ev.Package), Type: testType(ev.Package)}
			}
			r = &Result{Package: ev.Package, Name: ev.Test, Annotation: a}
			byKey[key] = r
		}

		switch ev.Action {
		case "pass", "fail", "skip":
			r.Status = ev.Action
			r.Elapsed = ev.Elapsed
		case "output":
			r.Output += ev.Output
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(byKey))
	for _, r := range byKey {
		if r.Status != "fail" {
			r.Output = ""
		}
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Package != results[j].Package {
			return results[i].Package < results[j].Package
		}
		return results[i].Name < results[j].Name
	})
	return results, nil
}

func splitKey(key string) (string, string) {
	i := strings.LastIndex(key, ".")
	return key[:i], key[i+1:]
}

func summarize(title string, results []Result) Report {
	r := Report{Title: title, GeneratedAt: time.Now().UTC(), Results: results}
	for _, res := range results {
		switch res.Status {
		case "pass":
			r.Passed++
		case "fail":
			r.Failed++
		case "skip":
			r.Skipped++
		default:
			r.NotRun++
		}
	}
	return r
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

var statusIcon = map[string]string{"pass": "✅", "fail": "❌", "skip": "⏭️", "not run": "⚪"}

func markdown(r Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# CyberCode Cloud %s\n\n", r.Title)
	fmt.Fprintf(&sb, "Generated %s\n\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "| Passed | Failed | Skipped | Not run |\n|---|---|---|---|\n| %d | %d | %d | %d |\n\n",
		r.Passed, r.Failed, r.Skipped, r.NotRun)

	grouped := map[string][]Result{}
	for _, res := range r.Results {
		grouped[res.Annotation.Category] = append(grouped[res.Annotation.Category], res)
	}
	order := make([]string, 0, len(categories)+1)
	for _, c := range categories {
		order = append(order, c.name)
	}
	order = append(order, "Other")

	for _, cat := range order {
		list := grouped[cat]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n| ID | Test | Status | Purpose | Expected |\n|---|---|---|---|---|\n", cat)
		for _, res := range list {
			fmt.Fprintf(&sb, "| %s | `%s` | %s | %s | %s |\n",
				res.Annotation.TestCaseID, res.Name, statusIcon[res.Status],
				cell(res.Annotation.Purpose), cell(res.Annotation.Expected))
		}
		sb.WriteString("\n")
	}

	if r.Failed > 0 {
		sb.WriteString("## Failures\n\n")
		for _, res := range r.Results {
			if res.Status == "fail" {
				fmt.Fprintf(&sb, "### %s.%s\n\n```\n%s```\n\n", res.Package, res.Name, res.Output)
			}
		}
	}
	return sb.String()
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
