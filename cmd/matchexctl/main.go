// Command matchexctl publishes a single order command onto a pair's
// input topic, for manual testing against a running matchex instance.
// The original CLI dialed a raw TCP socket and framed a binary message
// by hand; here the transport is Kafka and the payload is the JSON
// encoding ingest.Decode accepts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"

	kafka "github.com/segmentio/kafka-go"
)

func main() {
	brokers := flag.String("brokers", "localhost:9092", "comma-separated Kafka broker addresses")
	base := flag.String("base", "BTC", "base asset of the pair")
	quote := flag.String("quote", "USDT", "quote asset of the pair")
	action := flag.String("action", "place", "action: 'place' or 'cancel'")
	id := flag.Uint64("id", 0, "order id (compulsory)")
	userID := flag.Uint64("user", 0, "owning user id")
	sideStr := flag.String("side", "buy", "order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "order type: 'limit' or 'market'")
	price := flag.Float64("price", 0, "limit price")
	qty := flag.Float64("qty", 0, "quantity")

	flag.Parse()

	if *id == 0 {
		fmt.Println("Error: -id is compulsory.")
		flag.Usage()
		return
	}

	topic := fmt.Sprintf("%s_%s_SpotNewOrder", strings.ToUpper(*base), strings.ToUpper(*quote))
	writer := &kafka.Writer{Addr: kafka.TCP(strings.Split(*brokers, ",")...), Topic: topic}
	defer writer.Close()

	side := capitalize(*sideStr)
	payload, err := buildPayload(*action, *id, *userID, *price, *qty, capitalize(*typeStr), side)
	if err != nil {
		log.Fatalf("failed to build command: %v", err)
	}

	key := make([]byte, 8)
	for i := 0; i < 8; i++ {
		key[i] = byte(*id >> (56 - 8*i))
	}

	if err := writer.WriteMessages(context.Background(), kafka.Message{Key: key, Value: payload}); err != nil {
		log.Fatalf("failed to publish to %s: %v", topic, err)
	}
	fmt.Printf("-> published %s to %s\n", *action, topic)
}

func buildPayload(action string, id, userID uint64, price, qty float64, orderType, side string) ([]byte, error) {
	switch action {
	case "place":
		body, err := json.Marshal(map[string]any{
			"id": id, "user_id": userID, "price": price, "quantity": qty,
			"order_type": orderType, "side": side,
		})
		if err != nil {
			return nil, err
		}
		return append([]byte{0x00}, body...), nil
	case "cancel":
		body, err := json.Marshal(map[string]any{
			"type": "CancelOrder", "id": id, "price": price, "side": side,
		})
		if err != nil {
			return nil, err
		}
		return append([]byte{0x00}, body...), nil
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
