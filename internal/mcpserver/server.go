// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes notelog tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notelog/internal/noteservice"
)

// NoteFormatURI is the resource URI of the note format contract.
const NoteFormatURI = "notelog://note-format"

// Server wraps the MCP server with notelog tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all notelog tools registered.
func New(svc *noteservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"notelog",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Search notes by whole words. Prefix a word with ! to exclude it; "+
			"date:today or 2013-07-11 restricts to one day. An empty query lists every note."),
		mcp.WithString("query", mcp.Description("Space separated search terms")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Save a note. Without a timestamp the note is captured now "+
			"and follows the capture rules of the note format (see get_note_format)."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Single line note text")),
		mcp.WithNumber("timestamp", mcp.Description("Optional Unix timestamp in seconds")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete the note stored at a timestamp."),
		mcp.WithNumber("timestamp", mcp.Required(), mcp.Description("Unix timestamp in seconds")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("list_words",
		mcp.WithDescription("List every indexed word and hashtag."),
	), s.listWords)

	s.mcp.AddTool(mcp.NewTool("get_note_format",
		mcp.WithDescription("Returns the note format and search syntax. "+
			"Call this before adding notes or building queries."),
	), s.getNoteFormat)

	s.mcp.AddResource(
		mcp.NewResource(NoteFormatURI, "Note Format",
			mcp.WithResourceDescription("How notes are stored, captured and searched."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := ""
	if q, err := req.RequireString("query"); err == nil {
		query = q
	}
	notes, err := s.svc.Find(ctx, strings.Fields(query))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(notes) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	out, _ := json.MarshalIndent(notes, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.ContainsAny(text, "\r\n") {
		return mcp.NewToolResultError("note text must be a single line"), nil
	}

	var ts int64
	if f, tsErr := req.RequireFloat("timestamp"); tsErr == nil {
		ts, err = s.svc.Save(ctx, int64(f), text)
	} else {
		ts, err = s.svc.Add(ctx, text)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %d", ts)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f, err := req.RequireFloat("timestamp")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ts := int64(f)
	if err := s.svc.Delete(ctx, ts); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", ts)), nil
}

func (s *Server) listWords(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	words, err := s.svc.Words(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(words) == 0 {
		return mcp.NewToolResultText("no words indexed"), nil
	}
	return mcp.NewToolResultText(strings.Join(words, "\n")), nil
}

func (s *Server) getNoteFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      NoteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
