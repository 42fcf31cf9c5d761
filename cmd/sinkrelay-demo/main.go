package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"sinkrelay/internal/signature"

	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/google/uuid"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: sinkrelay-demo <send-event|sign>")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "send-event":
		sendEvent(os.Args[2:])
	case "sign":
		sign(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(2)
	}
}

func sendEvent(args []string) {
	fs := flag.NewFlagSet("send-event", flag.ExitOnError)
	target := fs.String("url", "http://localhost:8080/webhook-sink", "webhook sink url as the relay sees it")
	token := fs.String("token", os.Getenv("TWILIO_AUTH_TOKEN"), "auth token used to sign the delivery")
	eventType := fs.String("type", "com.twilio.messaging.message.delivered", "event type")
	form := fs.Bool("form", false, "send a form-encoded callback instead of a CloudEvents batch")
	_ = fs.Parse(args)

	if strings.TrimSpace(*token) == "" {
		fmt.Fprintln(os.Stderr, "--token is required")
		os.Exit(2)
	}

	var (
		req *http.Request
		err error
	)
	if *form {
		req, err = formDelivery(*target, *token, *eventType)
	} else {
		req, err = batchDelivery(*target, *token, *eventType)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	fmt.Printf("%s %s\n", res.Status, strings.TrimSpace(string(body)))
	if res.StatusCode >= 300 {
		os.Exit(1)
	}
}

func batchDelivery(target, token, eventType string) (*http.Request, error) {
	e := event.New()
	e.SetID("EZ" + strings.ReplaceAll(uuid.NewString(), "-", ""))
	e.SetType(eventType)
	e.SetSource("/sinkrelay-demo")
	e.SetTime(time.Now().UTC())
	e.SetDataSchema("https://events-schemas.twilio.com/demo/1")
	if err := e.SetData(event.ApplicationJSON, map[string]interface{}{
		"status": "demo",
	}); err != nil {
		return nil, err
	}
	body, err := json.Marshal([]event.Event{e})
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set(signature.BodyHashParam, signature.BodyHash(body))
	u.RawQuery = q.Encode()
	signed := u.String()

	req, err := http.NewRequest(http.MethodPost, signed, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.Header, signature.Compute(token, signed, nil))
	req.Header.Set("I-Twilio-Idempotency-Token", uuid.NewString())
	return req, nil
}

func formDelivery(target, token, eventType string) (*http.Request, error) {
	values := url.Values{
		"EventType": {eventType},
		"Timestamp": {time.Now().UTC().Format(time.RFC3339)},
	}
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(signature.Header, signature.ComputeValues(token, target, values))
	return req, nil
}

func sign(args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	target := fs.String("url", "", "full request url")
	token := fs.String("token", os.Getenv("TWILIO_AUTH_TOKEN"), "auth token")
	_ = fs.Parse(args)

	if strings.TrimSpace(*target) == "" || strings.TrimSpace(*token) == "" {
		fmt.Fprintln(os.Stderr, "--url and --token are required")
		os.Exit(2)
	}
	values := url.Values{}
	for _, pair := range fs.Args() {
		k, v, _ := strings.Cut(pair, "=")
		values.Add(k, v)
	}
	fmt.Println(signature.ComputeValues(*token, *target, values))
}
