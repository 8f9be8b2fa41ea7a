package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashPasswordPrintsBcryptHash(t *testing.T) {
	out, err := runCommand(t, "pass123\n", "hash-password")
	if err != nil {
		t.Fatalf("hash-password error = %v", err)
	}
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("pass123")); err != nil {
		t.Fatalf("printed hash does not verify: %v", err)
	}
}

func TestDiagnoseWithoutProviderPrintsMockMarkdown(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("POSTGRES_DSN", "")

	out, err := runCommand(t, "", "diagnose", "--ship", "Iona", "Main", "engine", "overheating")
	if err != nil {
		t.Fatalf("diagnose error = %v", err)
	}
	for _, want := range []string{"**Diagnosis:** Main engine overheating detected.", "**Ship:** Iona", "Mock response"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestDiagnoseJSONReadsStdin(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("POSTGRES_DSN", "")

	out, err := runCommand(t, "Cooling pump overheating\n", "diagnose", "--json")
	if err != nil {
		t.Fatalf("diagnose error = %v", err)
	}
	var d domain.Diagnosis
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if d.Equipment != domain.EquipmentCoolingPump || d.Diagnosis != "Cooling pump high temperature detected." {
		t.Fatalf("unexpected diagnosis %+v", d)
	}
}

func TestDiagnoseRejectsEmptyInput(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("POSTGRES_DSN", "")

	if _, err := runCommand(t, "   \n", "diagnose"); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestIngestDirectRequiresProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("POSTGRES_DSN", "")

	path := filepath.Join(t.TempDir(), "faults.csv")
	data := "Fault Entry ID,Equipment Affected,Fault Description,Cause (if known),Resolution Action\nF-1,Cooling Pump #1,Overheating,Blocked strainer,Cleaned strainer\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	_, err := runCommand(t, "", "ingest", "--direct", path)
	if err == nil || !strings.Contains(err.Error(), "embedding provider") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func writeStatsSheet(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faults.csv")
	data := "Fault Entry ID,Equipment Affected,Fault Description,Cause (if known),Resolution Action\n" +
		"F-1,Cooling Pump #2,Low Pressure - Blocked filter,,\n" +
		"F-2,Emergency Generator,Low Pressure - Blocked filter,,\n" +
		"F-3,Cooling Pump #2,Leaking - Seal worn out,,\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestStatsPrintsEquipmentTable(t *testing.T) {
	out, err := runCommand(t, "", "stats", writeStatsSheet(t))
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "Equipment") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if fields := strings.Fields(lines[1]); fields[len(fields)-1] != "2" || !strings.HasPrefix(lines[1], "Cooling Pump #2") {
		t.Fatalf("expected Cooling Pump #2 first with 2 entries, got %q", lines[1])
	}
}

func TestStatsByFaultJSON(t *testing.T) {
	out, err := runCommand(t, "", "stats", "--by", "fault", "--json", writeStatsSheet(t))
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	var got []struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(got) != 2 || got[0].Name != "Low Pressure - Blocked filter" || got[0].Count != 2 {
		t.Fatalf("unexpected counts %+v", got)
	}
}

func TestStatsRejectsUnknownDimension(t *testing.T) {
	if _, err := runCommand(t, "", "stats", "--by", "ship", writeStatsSheet(t)); err == nil {
		t.Fatalf("expected error for unknown dimension")
	}
}
