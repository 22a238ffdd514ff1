package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/notelog/internal/backend"
	"github.com/starford/notelog/internal/models"
	"github.com/starford/notelog/internal/noteservice"
	"github.com/starford/notelog/internal/plugins"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	pm, err := plugins.Load([]string{"datehandler", "todo", "lunch"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	coord, err := backend.Open(context.Background(), []string{"file"}, backend.Options{
		File:    backend.FileOptions{Location: filepath.Join(t.TempDir(), "notes.txt")},
		Builder: pm.Builder(),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { coord.Close() })

	svc := noteservice.NewService(coord, pm,
		noteservice.WithClock(func() time.Time { return time.Unix(1373500800, 0) }))
	return New(svc, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "search_notes":
		result, err = srv.searchNotes(ctx, req)
	case "add_note":
		result, err = srv.addNote(ctx, req)
	case "delete_note":
		result, err = srv.deleteNote(ctx, req)
	case "list_words":
		result, err = srv.listWords(ctx, req)
	case "get_note_format":
		result, err = srv.getNoteFormat(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestAddAndSearch(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "add_note", map[string]interface{}{"text": "this is a simple test #yolo"})
	if text := resultText(r); text != "saved: 1373500800" {
		t.Errorf("add result = %q", text)
	}
	r = callTool(t, srv, "add_note", map[string]interface{}{"text": "this is note 2", "timestamp": float64(1450794188)})
	if text := resultText(r); text != "saved: 1450794188" {
		t.Errorf("add result = %q", text)
	}

	r = callTool(t, srv, "search_notes", map[string]interface{}{"query": "this !yolo"})
	var notes []models.Note
	if err := json.Unmarshal([]byte(resultText(r)), &notes); err != nil {
		t.Fatalf("decode: %v (%q)", err, resultText(r))
	}
	if len(notes) != 1 || notes[0].Timestamp != 1450794188 {
		t.Errorf("notes = %+v", notes)
	}

	r = callTool(t, srv, "search_notes", map[string]interface{}{"query": "#yolo"})
	if !strings.Contains(resultText(r), "today: this is a simple test #yolo") {
		t.Errorf("hashtag search = %q", resultText(r))
	}
}

func TestSearchNoMatches(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "search_notes", map[string]interface{}{"query": "ghost"})
	if text := resultText(r); text != "no notes found" {
		t.Errorf("result = %q", text)
	}
}

func TestAddRejectsMultiline(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "add_note", map[string]interface{}{"text": "line one\nline two"})
	if !r.IsError {
		t.Error("expected error for multi-line note")
	}
}

func TestAddMissingText(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "add_note", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error when text is missing")
	}
}

func TestDeleteNote(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "add_note", map[string]interface{}{"text": "gone soon", "timestamp": float64(100)})

	r := callTool(t, srv, "delete_note", map[string]interface{}{"timestamp": float64(100)})
	if text := resultText(r); text != "deleted: 100" {
		t.Errorf("delete result = %q", text)
	}
	r = callTool(t, srv, "search_notes", map[string]interface{}{"query": "gone"})
	if text := resultText(r); text != "no notes found" {
		t.Errorf("search after delete = %q", text)
	}

	r = callTool(t, srv, "delete_note", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error when timestamp is missing")
	}
}

func TestListWordsFileOnly(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "list_words", map[string]interface{}{})
	if text := resultText(r); text != "no words indexed" {
		t.Errorf("result = %q", text)
	}
}

func TestGetNoteFormat(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_note_format", map[string]interface{}{})
	if resultText(r) != NoteFormatContract {
		t.Error("contract text mismatch")
	}
}

func TestNoteFormatResource(t *testing.T) {
	srv := testServer(t)
	contents, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != NoteFormatURI || tc.Text != NoteFormatContract {
		t.Errorf("resource = %+v", contents[0])
	}
}
