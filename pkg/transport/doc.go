// Package transport moves notification envelopes from the router to
// connected clients.
//
// The Transport interface abstracts the push mechanism so the router can
// stay ignorant of how clients attach. ChannelTransport is the in-process
// implementation: each client connection owns a buffered Go channel, sends
// never block on slow consumers, and connection lifecycle events (first
// connect, last disconnect) are surfaced for pending-message replay.
//
//	tr := transport.NewChannelTransport(transport.WithBufferSize(128))
//	defer tr.Close()
//
//	conn, err := tr.Connect(ctx, "user-42")
//	if err != nil {
//		return err
//	}
//	for env := range conn.Events() {
//		render(env.Message)
//		conn.Ack(env.Message.ID)
//	}
package transport
