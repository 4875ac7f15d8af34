package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Serve runs the router over newline-delimited JSON-RPC on in and out. The
// stream is a single conversation, so the session issued by initialize is
// attached to every later message. It returns when in is exhausted or ctx is
// done.
func (r *Router) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	rd := bufio.NewReader(in)
	enc := json.NewEncoder(out)
	var sessionID string
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := rd.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			res := r.Handle(ctx, Inbound{SessionID: sessionID, Body: line})
			if res.SessionID != "" {
				sessionID = res.SessionID
			}
			if res.Response != nil {
				if werr := enc.Encode(res.Response); werr != nil {
					return fmt.Errorf("write response: %w", werr)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.closeStdio(sessionID)
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}
	}
}

func (r *Router) closeStdio(sessionID string) {
	if sessionID == "" {
		return
	}
	if _, err := r.Terminate(context.Background(), sessionID); err != nil {
		r.logger.Warn("closing stdio session", zap.String("session_id", sessionID), zap.Error(err))
	}
}
