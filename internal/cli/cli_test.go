package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	kit "stockpipe/internal/platform/testkit"
	loaddom "stockpipe/internal/services/load/domain"
	"stockpipe/internal/services/orchestrator/domain"
)

const indexPage = `<html><body><table><tbody class="datatable-v2_body__8TXQk">
<tr><td><a href="/equities/apple">Apple Inc</a></td></tr>
</tbody></table></body></html>`

const applePage = `<html><body><table class="freeze-column-w-1"><thead><tr>
<th>Date</th><th>Price</th></tr></thead><tbody>
<tr><td>Jan 03, 2024</td><td>184.25</td></tr>
<tr><td>Jan 02, 2024</td><td>185.64</td></tr>
<tr><td>Jan 01, 2024</td><td>not a price</td></tr>
</tbody></table></body></html>`

const serviceAccount = `{"type":"service_account","project_id":"stock-proj","private_key":"k","client_email":"loader@stock-proj.iam.gserviceaccount.com"}`

// env isolates the process environment and returns the common flags
func env(t *testing.T, indexStatus int) []string {
	t.Helper()
	for _, k := range []string{
		"GOOGLE_APPLICATION_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS_JSON", "STOCKPIPE_SOURCE_TOKEN",
		"SERVICE_PGSQL_DBURL", "SERVICE_CLICKHOUSE_DBURL",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("CORE_EXTRACT_PAGE_INTERVAL", "1ms")
	t.Setenv("CORE_EXTRACT_RETRY_BACKOFF_BASE", "1ms")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			if indexStatus != http.StatusOK {
				w.WriteHeader(indexStatus)
				return
			}
			_, _ = w.Write([]byte(indexPage))
		case "/equities/apple-historical-data":
			_, _ = w.Write([]byte(applePage))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	creds := t.TempDir()
	kit.WriteFile(t, creds, "service-account.json", []byte(serviceAccount))
	return []string{
		"--warehouse", "memory",
		"--source-endpoint", srv.URL,
		"--credentials-dir", creds,
		"--sink-root", t.TempDir(),
		"--extract-max-retries", "1",
	}
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := Execute(context.Background(), args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestFullRunSucceeds(t *testing.T) {
	code, out, errOut := execute(t, env(t, http.StatusOK)...)
	if code != 0 {
		t.Fatalf("exit %d, stderr %q", code, errOut)
	}
	var run domain.Run
	if err := json.Unmarshal([]byte(out), &run); err != nil {
		t.Fatalf("stdout %q: %v", out, err)
	}
	if run.State != domain.StateSucceeded || run.Trigger != domain.TriggerCLI {
		t.Fatalf("run = %+v", run)
	}
	if run.Records != 2 || run.RowsWritten != 2 || run.TableRows < 2 {
		t.Fatalf("counts = %+v", run)
	}
	if run.SinkDir != "" {
		t.Fatalf("sink should be removed after success, got %q", run.SinkDir)
	}
}

func TestFullRunFailureExitsOne(t *testing.T) {
	code, out, errOut := execute(t, env(t, http.StatusServiceUnavailable)...)
	if code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	if out != "" {
		t.Fatalf("unexpected stdout %q", out)
	}
	kit.MustContain(t, errOut, "failed:")
	kit.MustContain(t, errOut, "503")
}

func TestExtractThenLoad(t *testing.T) {
	flags := env(t, http.StatusOK)

	code, out, errOut := execute(t, append([]string{"extract"}, flags...)...)
	if code != 0 {
		t.Fatalf("extract exit %d: %s", code, errOut)
	}
	dir := strings.TrimSpace(out)
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("sink dir %q: %v", dir, err)
	}

	code, out, errOut = execute(t, append([]string{"load", "--sink", dir}, flags...)...)
	if code != 0 {
		t.Fatalf("load exit %d: %s", code, errOut)
	}
	var res loaddom.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("stdout %q: %v", out, err)
	}
	if res.Records != 2 || res.RowsWritten != 2 || res.Warehouse != "memory" {
		t.Fatalf("load result = %+v", res)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("standalone load must not remove the sink: %v", err)
	}
}

func TestLoadRequiresCommittedSink(t *testing.T) {
	flags := env(t, http.StatusOK)
	code, _, errOut := execute(t, append([]string{"load", "--sink", t.TempDir()}, flags...)...)
	if code != 1 {
		t.Fatalf("exit %d, want 1", code)
	}
	kit.MustContain(t, errOut, "failed:")

	code, _, errOut = execute(t, "load")
	if code != 1 {
		t.Fatalf("missing --sink exit %d", code)
	}
	kit.MustContain(t, errOut, "sink")
}

func TestVersionAndBadArgs(t *testing.T) {
	code, out, _ := execute(t, "--version")
	if code != 0 {
		t.Fatalf("--version exit %d", code)
	}
	kit.MustContain(t, out, "stockpipe dev")

	code, _, errOut := execute(t, "bogus-arg")
	if code != 1 || errOut == "" {
		t.Fatalf("unexpected arg: exit %d stderr %q", code, errOut)
	}
}

func TestFlagOverrides(t *testing.T) {
	cmd := NewRootCmd()
	if err := cmd.ParseFlags([]string{"--batch-size", "50", "--keep-sink", "true"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	for _, f := range persistentFlags {
		if cmd.PersistentFlags().Lookup(f.name) == nil {
			t.Fatalf("flag %s not bound", f.name)
		}
	}
	if v, _ := cmd.PersistentFlags().GetString("batch-size"); v != "50" {
		t.Fatalf("batch-size = %q", v)
	}
}
