// Package logger provides a slog factory with sensible defaults plus typed
// attribute helpers for the notification pipeline (recipient, sender, message,
// channel, attempt).
//
// # Usage
//
//	log := logger.New(
//	    logger.WithProduction("pushkit"),
//	    logger.WithAttr(slog.String("component", "router")),
//	)
//	log.LogAttrs(ctx, slog.LevelInfo, "message dispatched",
//	    logger.MessageID(msg.ID),
//	    logger.RecipientID(recipientID),
//	    logger.Attempt(1),
//	)
package logger
