package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/praetorian-inc/betwixt/pkg/scanner"
)

// Version is the server protocol version
const Version = "1.0.0"

// Server manages the streaming scanner
type Server struct {
	core    *scanner.Core
	encoder *json.Encoder
	decoder *json.Decoder
}

// NewServer creates a new streaming server
func NewServer(core *scanner.Core, in io.Reader, out io.Writer) *Server {
	return &Server{
		core:    core,
		encoder: json.NewEncoder(out),
		decoder: json.NewDecoder(bufio.NewReader(in)),
	}
}

// Run answers requests until the input ends, a "close" request arrives or
// ctx is cancelled. Responses are written in request order.
func (s *Server) Run(ctx context.Context) error {
	s.send("ready", ReadyData{Version: Version, Rules: s.core.RuleCount()})

	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// a request decoded just before the error may still be queued
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(req) {
						return nil
					}
				default:
					if err != io.EOF {
						s.sendError("decode", err.Error())
					}
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(req Request) bool {
	switch req.Type {
	case "scan":
		var p ScanPayload
		if s.decode(req, &p) {
			result, err := s.core.Scan(p.Content, p.Source)
			s.respond(req.Type, result, err)
		}
	case "scan_batch":
		var p ScanBatchPayload
		if s.decode(req, &p) {
			result, err := s.core.ScanBatch(p.Items)
			s.respond(req.Type, result, err)
		}
	case "extract":
		var p ExtractPayload
		if s.decode(req, &p) {
			result, err := s.core.Extract(p)
			s.respond(req.Type, result, err)
		}
	case "findings":
		s.handleFindings()
	case "close":
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
	}
	return false
}

func (s *Server) handleFindings() {
	findings, err := s.core.Findings()
	if err != nil {
		s.sendError("findings", err.Error())
		return
	}
	out := make([]FindingData, 0, len(findings))
	for _, f := range findings {
		out = append(out, FindingData{
			ID:      f.ID,
			RuleID:  f.RuleID,
			Content: f.Content(),
			Matches: len(f.Matches),
		})
	}
	s.send("findings", out)
}

// decode unmarshals the request payload, answering with an error on failure.
func (s *Server) decode(req Request, v interface{}) bool {
	if err := json.Unmarshal(req.Payload, v); err != nil {
		s.sendError(req.Type, err.Error())
		return false
	}
	return true
}

func (s *Server) respond(reqType string, result interface{}, err error) {
	if err != nil {
		s.sendError(reqType, err.Error())
		return
	}
	s.send(reqType, result)
}

func (s *Server) send(reqType string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.sendError(reqType, err.Error())
		return
	}
	s.encoder.Encode(Response{
		Success: true,
		Type:    reqType,
		Data:    data,
	})
}

func (s *Server) sendError(reqType, msg string) {
	s.encoder.Encode(Response{
		Success: false,
		Type:    reqType,
		Error:   msg,
	})
}
