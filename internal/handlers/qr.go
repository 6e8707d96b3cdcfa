package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"

	"github.com/jobinpjoseph707/word-game-multiplayer/internal/game"
)

// JoinQR serves a PNG QR code of the room's join link
func (h *Handler) JoinQR(w http.ResponseWriter, r *http.Request) {
	code := game.NormalizeCode(chi.URLParam(r, "code"))
	room, err := h.engine.GetRoom(r.Context(), code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	png, err := generateQRCode(h.joinURL(r, room.Code))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", fmt.Sprint(len(png)))
	_, _ = w.Write(png)
}

func (h *Handler) joinURL(r *http.Request, code string) string {
	base := h.opts.PublicURL
	if base == "" {
		base = getBaseURL(r)
	}
	return strings.TrimRight(base, "/") + "/room/" + code
}

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

// generateQRCode renders url as a PNG
func generateQRCode(url string) ([]byte, error) {
	qrc, err := qrcode.NewWith(url,
		qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionMedium),
		qrcode.WithEncodingMode(qrcode.EncModeByte),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}

	buf := nopCloser{Buffer: new(bytes.Buffer)}
	wr := standard.NewWithWriter(buf,
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
		standard.WithQRWidth(8), // pixels per module
	)
	if err := qrc.Save(wr); err != nil {
		return nil, fmt.Errorf("failed to save QR code: %w", err)
	}
	return buf.Bytes(), nil
}

// getBaseURL constructs the base URL from the request, honouring proxy headers
func getBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	host := r.Host
	if forwardedHost := r.Header.Get("X-Forwarded-Host"); forwardedHost != "" {
		host = forwardedHost
	}
	return fmt.Sprintf("%s://%s", scheme, host)
}
