// api_test.go - endpoint behaviour of the checkout API
package testing

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/xuri/excelize/v2"
	"sitecheckout/internal/checkout"
	"sitecheckout/internal/ws"
)

func TestSessionRequired(t *testing.T) {
	suite := NewTestSuite(t)

	result := suite.Call(t, http.MethodGet, "/api/state", nil, "")
	suite.AssertErrorCode(t, result, http.StatusUnauthorized, "missing_session")

	result = suite.Call(t, http.MethodGet, "/api/state", nil, "no-such-session")
	suite.AssertErrorCode(t, result, http.StatusNotFound, "session_not_found")
}

func TestSessionCookie(t *testing.T) {
	suite := NewTestSuite(t)

	resp, err := suite.MakeAPIRequest(http.MethodPost, "/api/session", nil, "")
	suite.AssertNoError(t, err)
	resp.Body.Close()

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == checkout.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("session cookie not set")
	}

	req, _ := http.NewRequest(http.MethodGet, suite.Server.URL+"/api/state", nil)
	req.AddCookie(cookie)
	resp, err = suite.Client.Do(req)
	suite.AssertNoError(t, err)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cookie session refused: %d", resp.StatusCode)
	}
}

func TestReferenceDataLoaded(t *testing.T) {
	suite := NewTestSuite(t)
	state := suite.NewSession(t)

	want := []string{"Gloves", "Helmet", "T-shirt"}
	if len(state.Items) != len(want) {
		t.Fatalf("items = %v, want %v", state.Items, want)
	}
	for i := range want {
		if state.Items[i] != want[i] {
			t.Errorf("item %d = %s, want %s", i, state.Items[i], want[i])
		}
	}
	if len(state.Foremen) != 2 {
		t.Errorf("foremen = %v", state.Foremen)
	}

	result := suite.Call(t, http.MethodGet, "/api/catalog", nil, state.Session)
	suite.AssertStatusCode(t, result, http.StatusOK)
	var cat checkout.CatalogView
	if err := json.Unmarshal(result.Data, &cat); err != nil {
		t.Fatalf("decode catalog: %v", err)
	}
	if types := cat.ItemsAndTypes["Helmet"]; types == nil || len(types) != 0 {
		t.Errorf("Helmet should list no types, got %v", types)
	}
	if len(cat.ItemsSizes["Gloves"]["Leather"]) != 2 {
		t.Errorf("Gloves/Leather sizes = %v", cat.ItemsSizes["Gloves"]["Leather"])
	}

	// Reference data is fetched once per session
	before := suite.Backend.CatalogRequests
	suite.Call(t, http.MethodGet, "/api/catalog", nil, state.Session)
	suite.Call(t, http.MethodGet, "/api/state", nil, state.Session)
	if suite.Backend.CatalogRequests != before {
		t.Error("catalog should not be refetched within a session")
	}
}

func TestReferenceDataFailure(t *testing.T) {
	suite := NewTestSuite(t)
	suite.Backend.SetFailureMode(true, false, false)

	state := suite.NewSession(t)
	if len(state.Items) != 0 || len(state.Foremen) != 0 {
		t.Errorf("failed load should leave empty dropdowns, got %v / %v", state.Items, state.Foremen)
	}
	if len(state.LoadErrors) != 2 {
		t.Errorf("expected both load failures reported, got %v", state.LoadErrors)
	}
}

func TestDropdownChain(t *testing.T) {
	suite := NewTestSuite(t)
	state := suite.NewSession(t)
	sid, row := state.Session, state.Rows[0].ID

	state = suite.State(t, suite.Edit(t, sid, row, "item", "T-shirt"))
	if got := state.Rows[0].TypeOptions; len(got) != 1 || got[0] != "Orange" {
		t.Errorf("type options = %v", got)
	}

	state = suite.State(t, suite.Edit(t, sid, row, "type", "Orange"))
	if got := state.Rows[0].SizeOptions; len(got) != 2 || got[0] != "S" || got[1] != "M" {
		t.Errorf("size options should skip empty sizes, got %v", got)
	}
	suite.Edit(t, sid, row, "size", "M")

	// Changing the item resets the chain
	state = suite.State(t, suite.Edit(t, sid, row, "item", "Gloves"))
	r := state.Rows[0]
	if r.Type != "" || r.Size != "" || len(r.SizeOptions) != 0 || r.MaxQuantity != nil {
		t.Errorf("item change should reset type and size, got %+v", r)
	}
	if len(r.TypeOptions) != 2 {
		t.Errorf("type options = %v", r.TypeOptions)
	}

	// Items without types offer sizes directly
	state = suite.State(t, suite.Edit(t, sid, row, "item", "Helmet"))
	if len(state.Rows[0].TypeOptions) != 0 || len(state.Rows[0].SizeOptions) != 1 {
		t.Errorf("Helmet options = %+v", state.Rows[0])
	}
	suite.Edit(t, sid, row, "size", "One")
	state = suite.State(t, suite.Edit(t, sid, row, "quantity", "5"))
	if got := intValue(state.Rows[0].Quantity); got != 3 {
		t.Errorf("quantity above stock should clamp to 3, got %d", got)
	}

	result := suite.Edit(t, sid, row, "size", "XXL")
	suite.AssertErrorCode(t, result, http.StatusBadRequest, "invalid_option")

	result = suite.Edit(t, sid, row, "colour", "red")
	suite.AssertErrorCode(t, result, http.StatusBadRequest, "invalid_field")

	result = suite.Edit(t, sid, "missing-row", "name", "x")
	suite.AssertErrorCode(t, result, http.StatusNotFound, "row_not_found")
}

func TestDeleteLastRow(t *testing.T) {
	suite := NewTestSuite(t)
	state := suite.NewSession(t)

	result := suite.Call(t, http.MethodDelete, "/api/rows/"+state.Rows[0].ID, nil, state.Session)
	suite.AssertErrorCode(t, result, http.StatusConflict, "last_row")

	state = suite.State(t, suite.Call(t, http.MethodGet, "/api/state", nil, state.Session))
	if len(state.Rows) != 1 {
		t.Errorf("last row must survive, %d rows", len(state.Rows))
	}
}

func TestIncompleteBatchNeverSubmitted(t *testing.T) {
	suite := NewTestSuite(t)
	state := suite.NewSession(t)
	sid := state.Session

	suite.FillRow(t, sid, state.Rows[0].ID, GlovesRow("Petrov Alexei", "1"))
	state = suite.AddRow(t, sid)
	suite.Edit(t, sid, state.Rows[1].ID, "name", "Sidorov Ivan")

	result := suite.Call(t, http.MethodPost, "/api/submit", nil, sid)
	suite.AssertErrorCode(t, result, http.StatusUnprocessableEntity, "incomplete_row")
	if result.Error.Details != "row 2: field 'foreman' is required" {
		t.Errorf("details = %q", result.Error.Details)
	}
	if suite.Backend.SubmitCount() != 0 {
		t.Error("an incomplete batch must not reach the backend")
	}
}

func TestSearch(t *testing.T) {
	suite := NewTestSuite(t)
	sid := suite.NewSession(t).Session

	var res struct {
		Query string   `json:"query"`
		Names []string `json:"names"`
		Stale bool     `json:"stale"`
	}

	result := suite.Call(t, http.MethodGet, "/api/search?q=petr", nil, sid)
	if err := json.Unmarshal(result.Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Names) != 2 || res.Stale {
		t.Errorf("search petr = %+v", res)
	}

	result = suite.Call(t, http.MethodGet, "/api/search?q=+", nil, sid)
	if err := json.Unmarshal(result.Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Names) != 0 {
		t.Errorf("blank query should clear suggestions, got %v", res.Names)
	}
	if suite.Backend.SearchRequests != 1 {
		t.Errorf("blank query should not hit the backend, %d searches", suite.Backend.SearchRequests)
	}
}

func TestExportWorkbooks(t *testing.T) {
	suite := NewTestSuite(t)
	state := suite.NewSession(t)
	sid := state.Session
	suite.FillRow(t, sid, state.Rows[0].ID, GlovesRow("Petrov Alexei", "2"))

	for path, sheet := range map[string]string{
		"/api/export/batch.xlsx": "Checkout",
		"/api/export/stock.xlsx": "Stock",
	} {
		resp, err := suite.MakeAPIRequest(http.MethodGet, path, nil, sid)
		suite.AssertNoError(t, err)

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", path, resp.StatusCode)
		}
		f, err := excelize.OpenReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("%s: open workbook: %v", path, err)
		}
		rows, err := f.GetRows(sheet)
		f.Close()
		if err != nil {
			t.Fatalf("%s: read sheet %s: %v", path, sheet, err)
		}
		if len(rows) < 2 {
			t.Errorf("%s: expected header and data, got %v", path, rows)
		}
	}
}

func TestWebSocketPushesState(t *testing.T) {
	suite := NewTestSuite(t)
	state := suite.NewSession(t)
	sid := state.Session

	conn, _, err := gws.DefaultDialer.Dial(suite.WSURL(sid), nil)
	suite.AssertNoError(t, err)
	defer conn.Close()

	read := func() ws.Event {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var evt ws.Event
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("read event: %v", err)
		}
		return evt
	}

	if evt := read(); evt.Type != "state" || evt.Session != sid {
		t.Fatalf("unexpected greeting %+v", evt)
	}
	if !suite.WaitForCondition(func() bool { return suite.Hub.Clients(sid) == 1 }, time.Second) {
		t.Fatal("client never registered")
	}

	suite.AddRow(t, sid)
	evt := read()
	if evt.Type != "state" {
		t.Fatalf("unexpected event %+v", evt)
	}
	data, _ := json.Marshal(evt.Data)
	var pushed checkout.StateView
	if err := json.Unmarshal(data, &pushed); err != nil {
		t.Fatalf("decode pushed state: %v", err)
	}
	if len(pushed.Rows) != 2 {
		t.Errorf("pushed state should hold 2 rows, got %d", len(pushed.Rows))
	}
}

func TestWebSocketUnknownSession(t *testing.T) {
	suite := NewTestSuite(t)
	_, resp, err := gws.DefaultDialer.Dial(suite.WSURL("nope"), nil)
	if err == nil {
		t.Fatal("dial should fail for an unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 handshake response, got %v", resp)
	}
}
