package main

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pcarivbts/CommunityCellularManager/internal/stats"
)

const (
	liveWriteWait    = 10 * time.Second
	liveMaxMessage   = 16 << 10
	liveQueryTimeout = 30 * time.Second
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// liveRequest asks for a report over the live feed. Stream names the widget
// the report is for; requests on different streams are independent. Params
// holds the same query parameters as the report endpoint.
type liveRequest struct {
	Stream string            `json:"stream"`
	Seq    int64             `json:"seq"`
	Level  string            `json:"level"`
	Params map[string]string `json:"params"`
}

type liveResponse struct {
	Stream string          `json:"stream"`
	Seq    int64           `json:"seq"`
	Report *reportResponse `json:"report,omitempty"`
	Error  *errResponse    `json:"error,omitempty"`
}

// liveSlot is the newest request of one stream.
type liveSlot struct {
	latest int64
	cancel context.CancelFunc
}

// liveConn tracks the newest request of every stream of one connection.
// Only the newest request of a stream may answer; older ones are cancelled.
type liveConn struct {
	conn *websocket.Conn
	log  zerolog.Logger

	mu    sync.Mutex
	slots map[string]*liveSlot

	writeMu sync.Mutex
}

func newLiveConn(conn *websocket.Conn, log zerolog.Logger) *liveConn {
	return &liveConn{conn: conn, log: log, slots: make(map[string]*liveSlot)}
}

// begin registers seq as the newest request of stream and cancels the
// previous one. The first request of a stream is always accepted, whatever
// its seq; later ones must carry a larger seq.
func (lc *liveConn) begin(parent context.Context, stream string, seq int64) (context.Context, bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	slot, ok := lc.slots[stream]
	if !ok {
		slot = &liveSlot{}
		lc.slots[stream] = slot
	} else {
		if seq <= slot.latest {
			return nil, false
		}
		slot.cancel()
	}
	ctx, cancel := context.WithTimeout(parent, liveQueryTimeout)
	slot.latest = seq
	slot.cancel = cancel
	return ctx, true
}

func (lc *liveConn) current(stream string, seq int64) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	slot, ok := lc.slots[stream]
	return ok && slot.latest == seq
}

func (lc *liveConn) stop() {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	for _, slot := range lc.slots {
		slot.cancel()
	}
}

func (lc *liveConn) send(resp liveResponse) {
	lc.writeMu.Lock()
	defer lc.writeMu.Unlock()
	// checked under the write lock so a newer answer already sent cannot be
	// followed by a stale one
	if !lc.current(resp.Stream, resp.Seq) {
		return
	}
	lc.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	if err := lc.conn.WriteJSON(resp); err != nil {
		lc.log.Debug().Err(err).Str("stream", resp.Stream).Int64("seq", resp.Seq).Msg("live write failed")
	}
}

func handleLiveReports(engine *stats.Engine, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := liveUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()
		conn.SetReadLimit(liveMaxMessage)

		lc := newLiveConn(conn, log)
		defer lc.stop()

		ctx := c.Request.Context()
		var wg sync.WaitGroup
		defer wg.Wait()
		for {
			var req liveRequest
			if err := conn.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Msg("live feed closed")
				}
				return
			}
			qctx, ok := lc.begin(ctx, req.Stream, req.Seq)
			if !ok {
				continue
			}
			wg.Add(1)
			go func(req liveRequest) {
				defer wg.Done()
				lc.send(answerLive(qctx, engine, req))
			}(req)
		}
	}
}

func answerLive(ctx context.Context, engine *stats.Engine, req liveRequest) liveResponse {
	q := url.Values{}
	for k, v := range req.Params {
		q.Set(k, v)
	}
	rr, err := parseReportRequest(req.Level, q, engine.Now())
	if err != nil {
		return liveResponse{Stream: req.Stream, Seq: req.Seq, Error: liveError(err)}
	}
	built, err := buildReport(ctx, engine, rr)
	if err != nil {
		return liveResponse{Stream: req.Stream, Seq: req.Seq, Error: liveError(err)}
	}
	return liveResponse{Stream: req.Stream, Seq: req.Seq, Report: &built.Response}
}

func liveError(err error) *errResponse {
	code := "REQUEST_FAILED"
	if isValidationError(err) {
		code = "VALIDATION_ERROR"
	}
	return &errResponse{OK: false, Error: code, Message: err.Error()}
}
