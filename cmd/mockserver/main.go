// Command mockserver is a loopback robot-control server for manual
// testing of the streamer. It accepts WebSocket connections, logs every
// decoded telemetry frame, and can greet clients on connect.
package main

import (
	"flag"
	"net"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rs/zerolog"

	"github.com/omochice/handstream/internal/observability"
	"github.com/omochice/handstream/pkg/wire"
)

func main() {
	listen := flag.String("listen", ":8080", "Address to listen on")
	level := flag.String("log-level", "info", "Log level")
	greet := flag.Bool("greet", true, "Send a greeting message to each client on connect")
	flag.Parse()

	logger := observability.InitLogger("mockserver", *level)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to upgrade connection")
			return
		}
		clientLog := logger.With().Str("client", conn.RemoteAddr().String()).Logger()
		clientLog.Info().Msg("client connected")

		if *greet {
			if err := wsutil.WriteServerText(conn, []byte("mockserver ready")); err != nil {
				clientLog.Warn().Err(err).Msg("failed to greet client")
			}
		}

		go serve(conn, clientLog)
	})

	logger.Info().Str("addr", *listen).Msg("mock robot-control server listening")
	if err := http.ListenAndServe(*listen, nil); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func serve(conn net.Conn, logger zerolog.Logger) {
	defer conn.Close()
	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			logger.Info().Err(err).Msg("client disconnected")
			return
		}
		if op != ws.OpText {
			continue
		}

		var frame wire.Frame
		if err := frame.Decode(data); err != nil {
			logger.Warn().Err(err).Str("raw", string(data)).Msg("unparseable frame")
			continue
		}
		logger.Info().
			Str("type", frame.Type).
			Int("values", len(frame.HandData)).
			Msg("frame received")
		logger.Debug().Floats64("handData", frame.HandData).Msg("frame payload")
	}
}
