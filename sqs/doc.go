// Package sqs consumes the FIFO change queue that carries table stream
// records to long-running dispatch workers.
//
// A [Consumer] delivers each message to a caller-supplied channel as an
// [Item]. While an item is being processed its visibility timeout is renewed
// in the background, up to [WithMaxExtension] after receipt. Renewal is
// best-effort, so processing must tolerate redelivery.
//
//	consumer, err := sqs.NewConsumer(&awsCfg, "board-changes.fifo", logger).Init(ctx)
//	items := make(chan *sqs.Item)
//	go consumer.Receive(ctx, items)
//	for item := range items {
//	    if process(item.Body) == nil {
//	        item.Ack()
//	    } else {
//	        item.Nack()
//	    }
//	}
package sqs
