package renderer

import (
	"bufio"
	"io"
	"log"
	"strings"

	"github.com/Uknong/BetterCheeseUtil/pkg/proto"
)

// Markers the page script prints to its console.
const (
	videoStartedMarker = "유튜브 영상 재생 시작됨. 영상 주소:"
	resolutionMarker   = "[ChzzkResolution]"
)

// HandleConsole inspects one page console line and raises the event it announces.
func (o *Overlay) HandleConsole(msg string) {
	log.Printf("[CONSOLE] %s", msg)
	if rest, ok := strings.CutPrefix(msg, videoStartedMarker); ok {
		url, _, _ := strings.Cut(rest, "?autoplay")
		if url = strings.TrimSpace(url); url != "" {
			o.emit(proto.VideoStarted{URL: url})
		}
		return
	}
	if strings.HasPrefix(msg, resolutionMarker) {
		_, rest, _ := strings.Cut(msg, "]")
		kind, _, _ := strings.Cut(strings.TrimSpace(rest), "(")
		if kind = strings.TrimSpace(kind); kind != "" {
			o.emit(proto.ResolutionDetected{Type: kind})
		}
	}
}

// ReadConsole feeds each line of r to HandleConsole until r ends.
func (o *Overlay) ReadConsole(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimRight(sc.Text(), "\r"); line != "" {
			o.HandleConsole(line)
		}
	}
	return sc.Err()
}
