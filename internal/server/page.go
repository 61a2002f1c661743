package server

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// indexPage returns the shell page. The document body arrives over the
// WebSocket, so the shell only carries the mount container and the client
// script that connects, applies render frames, and reports events.
func indexPage() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, indexHTML)
		return err
	})
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8"/>
<meta name="viewport" content="width=device-width, initial-scale=1"/>
<title>domwire</title>
</head>
<body>
<div id="app"></div>
<script>
(function () {
	var app = document.getElementById("app");
	var scheme = location.protocol === "https:" ? "wss://" : "ws://";
	var ws = new WebSocket(scheme + location.host + "/ws");

	ws.onmessage = function (ev) {
		var msg = JSON.parse(ev.data);
		if (msg.type === "render") {
			app.innerHTML = msg.html;
		}
	};

	function handleOf(el) {
		if (!(el instanceof Element)) {
			return null;
		}
		var bound = el.closest("[data-dw-handle]");
		return bound ? Number(bound.getAttribute("data-dw-handle")) : null;
	}

	app.addEventListener("click", function (ev) {
		var h = handleOf(ev.target);
		if (h !== null) {
			ws.send(JSON.stringify({handle: h, event: "click"}));
		}
	});

	app.addEventListener("input", function (ev) {
		var h = handleOf(ev.target);
		if (h !== null) {
			ws.send(JSON.stringify({handle: h, event: "input", value: ev.target.value}));
		}
	});
})();
</script>
</body>
</html>
`
