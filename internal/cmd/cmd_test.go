package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/steveyegge/planmd/internal/config"
	"github.com/steveyegge/planmd/internal/planner"
)

const samplePlanMD = `# Release

Ship it.

## Step 1: Build
### Todo List
- [x] compile
- [ ] test

## Step 2: Deploy
### Todo List
- [ ] push
`

const canonicalPlanMD = `# Release

Ship it.

## Step 1: Build

### Todo List
- [ ] compile
- [ ] test

## Step 2: Deploy

### Todo List
- [ ] push
`

type fakeGenerator struct {
	text  string
	usage planner.Usage
	err   error

	req planner.GenerateRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req planner.GenerateRequest) (string, planner.Usage, error) {
	f.req = req
	return f.text, f.usage, f.err
}

func factoryFor(gen planner.TextGenerator) generatorFactory {
	return func(*config.Config) (planner.TextGenerator, error) {
		return gen, nil
	}
}

func noGenerator(*config.Config) (planner.TextGenerator, error) {
	return nil, errors.New("no generator in this test")
}

// runCmd executes the command tree with args and returns stdout and stderr.
// Without --config it runs in an empty directory, so no config file is found.
func runCmd(t *testing.T, gen generatorFactory, stdin string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvModel, "")

	root := newRootCmd(gen)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))

	// Without --config, run where the default config file does not exist.
	if !slices.Contains(args, "--config") {
		t.Chdir(t.TempDir())
	}
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestFmt_Stdin(t *testing.T) {
	out, _, err := runCmd(t, noGenerator, samplePlanMD, "fmt")
	if err != nil {
		t.Fatalf("fmt: %v", err)
	}
	if out != canonicalPlanMD {
		t.Errorf("output:\n%s\nwant:\n%s", out, canonicalPlanMD)
	}
}

func TestFmt_Idempotent(t *testing.T) {
	once, _, err := runCmd(t, noGenerator, samplePlanMD, "fmt")
	if err != nil {
		t.Fatalf("fmt: %v", err)
	}
	twice, _, err := runCmd(t, noGenerator, once, "fmt")
	if err != nil {
		t.Fatalf("fmt: %v", err)
	}
	if once != twice {
		t.Errorf("fmt not idempotent:\n%s\n---\n%s", once, twice)
	}
}

func TestFmt_Write(t *testing.T) {
	path := writeTemp(t, "plan.md", samplePlanMD)

	out, _, err := runCmd(t, noGenerator, "", "fmt", "-w", path)
	if err != nil {
		t.Fatalf("fmt -w: %v", err)
	}
	if out != "" {
		t.Errorf("fmt -w printed %q", out)
	}
	if got := readFile(t, path); got != canonicalPlanMD {
		t.Errorf("file:\n%s\nwant:\n%s", got, canonicalPlanMD)
	}
}

func TestFmt_WriteLeavesNoStrayFiles(t *testing.T) {
	path := writeTemp(t, "plan.md", samplePlanMD)

	if _, _, err := runCmd(t, noGenerator, "", "fmt", "-w", path); err != nil {
		t.Fatalf("fmt -w: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) != 1 || names[0] != "plan.md" {
		t.Errorf("directory holds %v, want only plan.md", names)
	}
}

func TestFmt_WriteNeedsFile(t *testing.T) {
	if _, _, err := runCmd(t, noGenerator, samplePlanMD, "fmt", "-w"); err == nil {
		t.Error("expected error for --write without a file")
	}
}

func TestFmt_MissingFile(t *testing.T) {
	_, _, err := runCmd(t, noGenerator, "", "fmt", filepath.Join(t.TempDir(), "nope.md"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestValidate(t *testing.T) {
	out, _, err := runCmd(t, noGenerator, samplePlanMD, "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "Release: 2 step(s), 3 todo(s)") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestValidate_Invalid(t *testing.T) {
	out, _, err := runCmd(t, noGenerator, "# Empty\n\n## Step 1: Lonely\n", "validate")
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("err = %v, want ErrInvalidPlan", err)
	}
	if !strings.Contains(out, "step must have at least one todo") {
		t.Errorf("output missing problem: %q", out)
	}
}

func TestJSON(t *testing.T) {
	out, _, err := runCmd(t, noGenerator, samplePlanMD, "json")
	if err != nil {
		t.Fatalf("json: %v", err)
	}

	var got struct {
		Title string `json:"title"`
		Steps []struct {
			Title string   `json:"title"`
			Todos []string `json:"todos"`
		} `json:"steps"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if got.Title != "Release" || len(got.Steps) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got.Steps[0].Title != "Step 1: Build" {
		t.Errorf("step title = %q", got.Steps[0].Title)
	}
}

func TestShow_NotTerminal(t *testing.T) {
	out, _, err := runCmd(t, noGenerator, samplePlanMD, "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if out != canonicalPlanMD {
		t.Errorf("output:\n%s\nwant:\n%s", out, canonicalPlanMD)
	}
}

func TestStepGet(t *testing.T) {
	out, _, err := runCmd(t, noGenerator, samplePlanMD, "step", "get", "2")
	if err != nil {
		t.Fatalf("step get: %v", err)
	}
	want := "## Step 2: Deploy\n\n### Todo List\n- [ ] push\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	_, _, err = runCmd(t, noGenerator, samplePlanMD, "step", "get", "3")
	if !errors.Is(err, ErrStepNotFound) {
		t.Errorf("err = %v, want ErrStepNotFound", err)
	}

	if _, _, err := runCmd(t, noGenerator, samplePlanMD, "step", "get", "two"); err == nil {
		t.Error("expected error for non-numeric step")
	}
}

func TestStepAdd(t *testing.T) {
	out, _, err := runCmd(t, noGenerator, samplePlanMD,
		"step", "add", "--title", "Test", "--todo", "unit", "--todo", "e2e", "--at", "2")
	if err != nil {
		t.Fatalf("step add: %v", err)
	}

	for _, want := range []string{
		"## Step 1: Build\n",
		"## Step 2: Test\n\n### Todo List\n- [ ] unit\n- [ ] e2e\n",
		"## Step 3: Deploy\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStepAdd_RequiresTitle(t *testing.T) {
	if _, _, err := runCmd(t, noGenerator, samplePlanMD, "step", "add", "--todo", "x"); err == nil {
		t.Error("expected error without --title")
	}
}

func TestStepUpdate_Write(t *testing.T) {
	path := writeTemp(t, "plan.md", samplePlanMD)

	_, _, err := runCmd(t, noGenerator, "",
		"step", "update", "1", path, "--description", "Compile\nand link", "-w")
	if err != nil {
		t.Fatalf("step update: %v", err)
	}

	got := readFile(t, path)
	if !strings.Contains(got, "## Step 1: Build\n\nCompile and link\n\n### Todo List\n- [ ] compile\n") {
		t.Errorf("file not updated:\n%s", got)
	}
	if !strings.Contains(got, "## Step 2: Deploy\n") {
		t.Errorf("other step lost:\n%s", got)
	}
}

func TestStepUpdate_OutOfRange(t *testing.T) {
	path := writeTemp(t, "plan.md", samplePlanMD)

	_, _, err := runCmd(t, noGenerator, "", "step", "update", "5", path, "--title", "X", "-w")
	if !errors.Is(err, ErrStepNotFound) {
		t.Errorf("err = %v, want ErrStepNotFound", err)
	}
	if got := readFile(t, path); got != samplePlanMD {
		t.Errorf("file changed on failed update:\n%s", got)
	}
}

func TestStepRemove(t *testing.T) {
	out, _, err := runCmd(t, noGenerator, samplePlanMD, "step", "remove", "1")
	if err != nil {
		t.Fatalf("step remove: %v", err)
	}
	want := "# Release\n\nShip it.\n\n## Step 1: Deploy\n\n### Todo List\n- [ ] push\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	_, _, err = runCmd(t, noGenerator, samplePlanMD, "step", "remove", "0")
	if !errors.Is(err, ErrStepNotFound) {
		t.Errorf("err = %v, want ErrStepNotFound", err)
	}
}

const generatedPlanMD = "# Cache\n\n## Step 1: Add Redis\n\n### Todo List\n- [ ] wire client"

func lastHumanText(t *testing.T, req planner.GenerateRequest) string {
	t.Helper()
	for i := len(req.Messages) - 1; i >= 0; i-- {
		m := req.Messages[i]
		if m.Role == llms.ChatMessageTypeHuman && len(m.Parts) > 0 {
			return m.Parts[0].(llms.TextContent).Text
		}
	}
	t.Fatal("no human message in request")
	return ""
}

func TestGenerate(t *testing.T) {
	gen := &fakeGenerator{text: generatedPlanMD, usage: planner.Usage{InputTokens: 12, OutputTokens: 7}}

	out, errOut, err := runCmd(t, factoryFor(gen), "",
		"generate", "--context", "Go service", "Add", "caching")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	want := "# Cache\n\n## Step 1: Add Redis\n\n### Todo List\n- [ ] wire client\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if !strings.Contains(errOut, "tokens: 12 in, 7 out") {
		t.Errorf("stderr missing usage: %q", errOut)
	}

	prompt := lastHumanText(t, gen.req)
	if !strings.Contains(prompt, "Add caching") || !strings.Contains(prompt, "Go service") {
		t.Errorf("prompt missing task or context:\n%s", prompt)
	}
	if want := config.Default().Model; gen.req.Model != want {
		t.Errorf("model = %q, want %q", gen.req.Model, want)
	}
}

func TestGenerate_Output(t *testing.T) {
	gen := &fakeGenerator{text: generatedPlanMD}
	path := filepath.Join(t.TempDir(), "plan.md")

	out, _, err := runCmd(t, factoryFor(gen), "", "generate", "-o", path, "Add caching")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want empty", out)
	}
	if got := readFile(t, path); !strings.HasPrefix(got, "# Cache\n") {
		t.Errorf("file = %q", got)
	}
}

func TestGenerate_OutputReplacesExisting(t *testing.T) {
	path := writeTemp(t, "plan.md", samplePlanMD)
	if err := os.Chmod(path, 0o600); err != nil {
		t.Fatal(err)
	}

	gen := &fakeGenerator{text: generatedPlanMD}
	if _, _, err := runCmd(t, factoryFor(gen), "", "generate", "-o", path, "Add caching"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if got := readFile(t, path); !strings.HasPrefix(got, "# Cache\n") {
		t.Errorf("file = %q", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only plan.md", len(entries))
	}
}

func TestGenerate_OutputRefusesEmptyResponse(t *testing.T) {
	path := writeTemp(t, "plan.md", samplePlanMD)
	gen := &fakeGenerator{text: "   "}

	_, errOut, err := runCmd(t, factoryFor(gen), "", "generate", "-o", path, "Add caching")
	if !errors.Is(err, ErrNoPlan) {
		t.Fatalf("err = %v, want ErrNoPlan", err)
	}
	if got := readFile(t, path); got != samplePlanMD {
		t.Errorf("file changed to %q", got)
	}
	if !strings.Contains(errOut, "did not return a plan with steps") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestGenerate_OutputRefusesNewFileWithoutSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.md")
	gen := &fakeGenerator{text: "# Just a title"}

	_, _, err := runCmd(t, factoryFor(gen), "", "generate", "-o", path, "Add caching")
	if !errors.Is(err, ErrNoPlan) {
		t.Fatalf("err = %v, want ErrNoPlan", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("plan without steps was written")
	}
}

func TestGenerate_JSON(t *testing.T) {
	gen := &fakeGenerator{text: generatedPlanMD, usage: planner.Usage{InputTokens: 3, OutputTokens: 4}}

	out, _, err := runCmd(t, factoryFor(gen), "", "generate", "--json", "Add caching")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var got planner.Result
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if got.Plan.Title != "Cache" || len(got.Plan.Steps) != 1 {
		t.Errorf("plan = %+v", got.Plan)
	}
	if got.Usage.OutputTokens != 4 {
		t.Errorf("usage = %+v", got.Usage)
	}
}

func TestGenerate_GeneratorError(t *testing.T) {
	boom := errors.New("rate limited")
	gen := &fakeGenerator{err: boom}

	_, _, err := runCmd(t, factoryFor(gen), "", "generate", "Add caching")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestGenerate_FactoryError(t *testing.T) {
	_, _, err := runCmd(t, noGenerator, "", "generate", "Add caching")
	if err == nil || !strings.Contains(err.Error(), "no generator") {
		t.Errorf("err = %v, want factory error", err)
	}
}

func TestGenerate_ConfigAndPrompts(t *testing.T) {
	dir := t.TempDir()
	prompts := `name: custom
system: You are terse.
generate: "PLAN FOR {{.task}}"
modify: "{{.currentPlan}} / {{.modification}}"
`
	if err := os.WriteFile(filepath.Join(dir, "prompts.yaml"), []byte(prompts), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "planmd.toml")
	cfg := "model = \"local-model\"\nmax_tokens = 100\nprompts_file = \"prompts.yaml\"\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	gen := &fakeGenerator{text: generatedPlanMD}
	if _, _, err := runCmd(t, factoryFor(gen), "", "generate", "--config", cfgPath, "Add caching"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	if gen.req.Model != "local-model" || gen.req.MaxTokens != 100 {
		t.Errorf("request = model %q max_tokens %d", gen.req.Model, gen.req.MaxTokens)
	}
	if got := lastHumanText(t, gen.req); got != "PLAN FOR Add caching" {
		t.Errorf("prompt = %q", got)
	}
}

func TestGenerate_BadConfig(t *testing.T) {
	cfgPath := writeTemp(t, "planmd.toml", "temperature = 9\n")

	_, _, err := runCmd(t, factoryFor(&fakeGenerator{}), "", "generate", "--config", cfgPath, "x")
	if err == nil {
		t.Error("expected config validation error")
	}
}

func TestConfig_ExplicitMissingFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "plnmd.toml")

	_, _, err := runCmd(t, noGenerator, samplePlanMD, "fmt", "--config", cfgPath)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestModify_Stdin(t *testing.T) {
	gen := &fakeGenerator{text: generatedPlanMD, usage: planner.Usage{InputTokens: 1, OutputTokens: 2}}

	out, errOut, err := runCmd(t, factoryFor(gen), samplePlanMD, "modify", "-", "Replace", "everything")
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if !strings.HasPrefix(out, "# Cache\n") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(errOut, "tokens: 1 in, 2 out") {
		t.Errorf("stderr = %q", errOut)
	}

	prompt := lastHumanText(t, gen.req)
	if !strings.Contains(prompt, "# Release") || !strings.Contains(prompt, "Replace everything") {
		t.Errorf("prompt missing plan or instruction:\n%s", prompt)
	}
}

func TestModify_Write(t *testing.T) {
	path := writeTemp(t, "plan.md", samplePlanMD)
	gen := &fakeGenerator{text: generatedPlanMD}

	out, _, err := runCmd(t, factoryFor(gen), "", "modify", "-w", path, "Switch to caching")
	if err != nil {
		t.Fatalf("modify -w: %v", err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want empty", out)
	}

	want := "# Cache\n\n## Step 1: Add Redis\n\n### Todo List\n- [ ] wire client\n"
	if got := readFile(t, path); got != want {
		t.Errorf("file = %q, want %q", got, want)
	}
}

func TestModify_EmptyResponseKeepsPlan(t *testing.T) {
	gen := &fakeGenerator{text: "  \n"}

	out, _, err := runCmd(t, factoryFor(gen), samplePlanMD, "modify", "-", "noop")
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if out != samplePlanMD {
		t.Errorf("output = %q, want the original plan", out)
	}
}

func TestModify_WriteRefusesPlanWithoutSteps(t *testing.T) {
	path := writeTemp(t, "plan.md", samplePlanMD)
	gen := &fakeGenerator{text: "Sorry, I cannot help with that."}

	_, errOut, err := runCmd(t, factoryFor(gen), "", "modify", "-w", path, "Add a rollback step")
	if !errors.Is(err, ErrNoPlan) {
		t.Fatalf("err = %v, want ErrNoPlan", err)
	}
	if got := readFile(t, path); got != samplePlanMD {
		t.Errorf("file changed to %q", got)
	}
	if !strings.Contains(errOut, "tokens:") {
		t.Errorf("stderr = %q, want usage report", errOut)
	}
}

func TestModify_WriteRefusesEmptyResponse(t *testing.T) {
	path := writeTemp(t, "plan.md", samplePlanMD)
	gen := &fakeGenerator{text: "\n"}

	_, _, err := runCmd(t, factoryFor(gen), "", "modify", "-w", path, "noop")
	if !errors.Is(err, ErrNoPlan) {
		t.Fatalf("err = %v, want ErrNoPlan", err)
	}
	if got := readFile(t, path); got != samplePlanMD {
		t.Errorf("file changed to %q", got)
	}
}

func TestModify_WriteNeedsFile(t *testing.T) {
	_, _, err := runCmd(t, factoryFor(&fakeGenerator{}), samplePlanMD, "modify", "-w", "-", "x")
	if err == nil {
		t.Error("expected error for --write on stdin")
	}
}

func writeHookConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := `
[[hooks.pre-write]]
type = "builtin"
builtin = "validate"

[[hooks.pre-write]]
type = "builtin"
builtin = "backup"

[[hooks.post-write]]
type = "command"
cmd = "cat > written.md"
`
	path := filepath.Join(dir, "planmd.toml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHooks_WriteRunsHooks(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeHookConfig(t, dir)
	path := filepath.Join(dir, "plan.md")
	if err := os.WriteFile(path, []byte(samplePlanMD), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := runCmd(t, noGenerator, "", "fmt", "-w", path, "--config", cfgPath); err != nil {
		t.Fatalf("fmt -w: %v", err)
	}

	if got := readFile(t, path+".bak"); got != samplePlanMD {
		t.Errorf("backup = %q, want the original plan", got)
	}
	if got := readFile(t, filepath.Join(dir, "written.md")); got != strings.TrimSuffix(canonicalPlanMD, "\n") {
		t.Errorf("post-write hook saw %q", got)
	}
}

func TestHooks_PreWriteBlocksInvalidPlan(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeHookConfig(t, dir)
	path := filepath.Join(dir, "plan.md")
	if err := os.WriteFile(path, []byte(samplePlanMD), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := runCmd(t, noGenerator, "",
		"step", "add", path, "--title", "Empty", "-w", "--config", cfgPath)
	if !errors.Is(err, ErrWriteBlocked) {
		t.Fatalf("err = %v, want ErrWriteBlocked", err)
	}
	if !strings.Contains(err.Error(), "step must have at least one todo") {
		t.Errorf("err = %v", err)
	}

	if got := readFile(t, path); got != samplePlanMD {
		t.Errorf("file changed after blocked write:\n%s", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "written.md")); !os.IsNotExist(err) {
		t.Error("post-write hook ran after a blocked write")
	}
}

func TestHooks_StdoutSkipsWriteHooks(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeHookConfig(t, dir)

	out, _, err := runCmd(t, noGenerator, "# Only a title\n", "fmt", "--config", cfgPath)
	if err != nil {
		t.Fatalf("fmt: %v", err)
	}
	if out != "# Only a title\n" {
		t.Errorf("output = %q", out)
	}
}

func TestHooks_GenerateOutputBlocked(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeHookConfig(t, dir)
	gen := &fakeGenerator{text: "# Cache\n\n## Step 1: Think about it"}
	path := filepath.Join(dir, "plan.md")

	_, _, err := runCmd(t, factoryFor(gen), "", "generate", "-o", path, "--config", cfgPath, "Add caching")
	if !errors.Is(err, ErrWriteBlocked) {
		t.Fatalf("err = %v, want ErrWriteBlocked", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("blocked plan was written")
	}
}
