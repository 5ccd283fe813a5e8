// Package main runs end-to-end booking conversations against a running API.
//
// Scenarios cover:
//   - Single-message booking with purpose and confirmation
//   - Purpose follow-up question
//   - Same-day time change before confirming
//   - Duplicate slot detection
//   - Listing upcoming appointments
//
// Usage:
//
//	API_BASE_URL=http://localhost:10000 go run scripts/e2e/run_e2e.go              # runs all
//	API_BASE_URL=http://localhost:10000 go run scripts/e2e/run_e2e.go happy-path   # runs one
//
// With ADMIN_JWT_SECRET set, each scenario's appointments are removed afterwards.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	httpmiddleware "github.com/myclarix/lumina/internal/http/middleware"
)

var (
	apiBase    string
	adminToken string
	httpClient = &http.Client{Timeout: 30 * time.Second}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed   int
	failed   int
	name     string
	clientID string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...any) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

type chatResponse struct {
	Reply       string          `json:"reply"`
	ClientID    string          `json:"clientId"`
	Appointment json.RawMessage `json:"appointment,omitempty"`
}

// say posts one chat turn and prints the exchange.
func (t *T) say(text string) (string, bool) {
	body, _ := json.Marshal(map[string]string{"clientId": t.clientID, "message": text})
	resp, err := httpClient.Post(apiBase+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.fatalf("chat request failed: %v", err)
		return "", false
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.fatalf("chat returned %d: %s", resp.StatusCode, string(raw))
		return "", false
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		t.fatalf("decode chat reply: %v", err)
		return "", false
	}
	fmt.Printf("    > %s\n    < %s\n", text, strings.ReplaceAll(out.Reply, "\n", " "))
	return out.Reply, true
}

func (t *T) listAppointments() []map[string]any {
	resp, err := httpClient.Get(apiBase + "/api/appointments?clientId=" + url.QueryEscape(t.clientID))
	if err != nil {
		t.fatalf("list appointments: %v", err)
		return nil
	}
	defer resp.Body.Close()
	var list []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.fatalf("decode appointments: %v", err)
		return nil
	}
	return list
}

func cleanup(clientID string) {
	if adminToken == "" {
		return
	}
	req, _ := http.NewRequest(http.MethodDelete, apiBase+"/admin/appointments?clientId="+url.QueryEscape(clientID), nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := httpClient.Do(req)
	if err != nil {
		fmt.Printf("    cleanup failed: %v\n", err)
		return
	}
	resp.Body.Close()
}

func contains(reply string, fragments ...string) bool {
	lower := strings.ToLower(reply)
	for _, f := range fragments {
		if strings.Contains(lower, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

func scenarioHappyPath(t *T) {
	reply, ok := t.say("Quiero una cita mañana a las 17 para una limpieza facial")
	if !ok {
		return
	}
	t.check("asks for confirmation", contains(reply, "confirmas"))
	t.check("echoes purpose", contains(reply, "limpieza facial"))

	reply, ok = t.say("sí")
	if !ok {
		return
	}
	t.check("confirms appointment", contains(reply, "cita confirmada"))
	t.check("appointment stored", len(t.listAppointments()) == 1)
}

func scenarioPurposeFollowUp(t *T) {
	reply, ok := t.say("quiero una cita mañana a las 18")
	if !ok {
		return
	}
	t.check("asks for purpose", contains(reply, "para qué es la cita"))

	reply, ok = t.say("revisión")
	if !ok {
		return
	}
	t.check("asks for confirmation", contains(reply, "confirmas"))

	reply, ok = t.say("no")
	if !ok {
		return
	}
	t.check("cancels politely", contains(reply, "de acuerdo"))
	t.check("nothing stored", len(t.listAppointments()) == 0)
}

func scenarioChangeTime(t *T) {
	if _, ok := t.say("necesito una cita mañana a las 10 para consulta"); !ok {
		return
	}
	reply, ok := t.say("cambiar hora")
	if !ok {
		return
	}
	t.check("asks for a new time", contains(reply, "otra hora"))

	reply, ok = t.say("a las 12")
	if !ok {
		return
	}
	t.check("proposes new time", contains(reply, "quedaría", "12:00"))

	reply, ok = t.say("si")
	if !ok {
		return
	}
	t.check("confirms at new time", contains(reply, "cita confirmada") && contains(reply, "12:00"))
}

func scenarioDuplicateSlot(t *T) {
	for _, msg := range []string{"quiero una cita mañana a las 19 para consulta", "sí"} {
		if _, ok := t.say(msg); !ok {
			return
		}
	}
	if _, ok := t.say("quiero una cita mañana a las 19 para consulta"); !ok {
		return
	}
	reply, ok := t.say("sí")
	if !ok {
		return
	}
	t.check("reports taken slot", contains(reply, "ya estaba registrada"))
	t.check("still one appointment", len(t.listAppointments()) == 1)
}

func scenarioListAppointments(t *T) {
	reply, ok := t.say("mis citas")
	if !ok {
		return
	}
	t.check("no upcoming appointments", contains(reply, "no tienes citas"))

	for _, msg := range []string{"quiero una cita pasado mañana a las 11 para masaje", "sí"} {
		if _, ok := t.say(msg); !ok {
			return
		}
	}
	reply, ok = t.say("qué citas tengo")
	if !ok {
		return
	}
	t.check("lists upcoming appointment", contains(reply, "próximas citas") && contains(reply, "masaje"))
}

var scenarios = []scenario{
	{"happy-path", scenarioHappyPath},
	{"purpose-follow-up", scenarioPurposeFollowUp},
	{"change-time", scenarioChangeTime},
	{"duplicate-slot", scenarioDuplicateSlot},
	{"list-appointments", scenarioListAppointments},
}

func main() {
	_ = godotenv.Load()

	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		apiBase = "http://localhost:10000"
	}
	if secret := os.Getenv("ADMIN_JWT_SECRET"); secret != "" {
		token, err := httpmiddleware.IssueAdminToken(secret, "e2e", time.Hour)
		if err != nil {
			fmt.Printf("could not issue admin token: %v\n", err)
			os.Exit(1)
		}
		adminToken = token
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	run := time.Now().Unix()
	var passed, failed, ran int
	for _, sc := range scenarios {
		if filter != "" && sc.Name != filter {
			continue
		}
		ran++
		t := &T{name: sc.Name, clientID: fmt.Sprintf("e2e_%d_%s", run, sc.Name)}
		fmt.Printf("\n[%s] client=%s\n", sc.Name, t.clientID)
		cleanup(t.clientID)
		sc.Fn(t)
		cleanup(t.clientID)
		passed += t.passed
		failed += t.failed
	}

	if ran == 0 {
		fmt.Printf("unknown scenario %q\n", filter)
		os.Exit(2)
	}
	fmt.Printf("\n%d checks passed, %d failed\n", passed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
