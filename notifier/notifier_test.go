package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PagerDuty/go-pagerduty"
	"gopkg.in/mail.v2"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

func TestNotifier_NewProvider(t *testing.T) {
	c := &structs.Notification{}

	_, err := NewProvider("OperationsOnlyOnCall", c)
	fakeNotExpected := "the notifications provider OperationsOnlyOnCall is not supported"

	if !strings.Contains(err.Error(), fakeNotExpected) {
		t.Fatalf("expected %q to include %q", err.Error(), fakeNotExpected)
	}

	if _, err := NewProvider("pagerduty", c); err == nil {
		t.Fatalf("expected an error without routing key")
	}

	c.PagerDutyRoutingKey = "R0UT1NGK3Y"
	pd, err := NewProvider("pagerduty", c)
	if err != nil {
		t.Fatalf("expected pagerduty error to be nil, got %v", err)
	}
	if pd.Name() != "pagerduty" {
		t.Fatalf("expected pagerduty Name to be pagerduty, got %v", pd.Name())
	}
}

func TestNotifier_NewProviders(t *testing.T) {
	c := &structs.Notification{
		PagerDutyRoutingKey: "R0UT1NGK3Y",
		Email: &structs.Email{
			Host: "smtp.example.com", Port: 587, From: "bbbpool@example.com",
			To: []string{"ops@example.com"},
		},
	}

	notifiers, err := NewProviders(c)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	var names []string
	for _, n := range notifiers {
		names = append(names, n.Name())
	}
	if strings.Join(names, ",") != "pagerduty,email" {
		t.Fatalf("expected pagerduty,email got %v", names)
	}

	if notifiers, _ := NewProviders(nil); len(notifiers) != 0 {
		t.Fatalf("expected no notifier got %v", len(notifiers))
	}
}

func TestNotifier_PagerDutySend(t *testing.T) {
	var sent pagerduty.V2Event
	p := &PagerDutyProvider{
		routingKey: "R0UT1NGK3Y",
		send: func(_ context.Context, e pagerduty.V2Event) (*pagerduty.V2EventResponse, error) {
			sent = e
			return &pagerduty.V2EventResponse{}, nil
		},
	}

	msg := FailureMessage{AlertUID: "42", Project: "demo", Level: "ERROR",
		Reason: "slot 3 is unresponsive", Time: time.Unix(0, 0)}

	if err := p.SendNotification(context.Background(), msg); err != nil {
		t.Fatalf("err: %v", err)
	}
	if sent.DedupKey != "42" || sent.Payload.Severity != "error" || sent.RoutingKey != "R0UT1NGK3Y" {
		t.Fatalf("unexpected event %+v", sent)
	}

	p.send = func(context.Context, pagerduty.V2Event) (*pagerduty.V2EventResponse, error) {
		return nil, errors.New("boom")
	}
	if err := p.SendNotification(context.Background(), msg); err == nil {
		t.Fatalf("expected an error")
	}
}

type mockDialer struct {
	sent []*mail.Message
	err  error
}

func (d *mockDialer) DialAndSend(m ...*mail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestNotifier_EmailSend(t *testing.T) {
	dialer := &mockDialer{}
	e := &EmailProvider{from: "bbbpool@example.com", to: []string{"ops@example.com"}, dialer: dialer}

	msg := FailureMessage{AlertUID: "42", Project: "demo", Level: "WARN", Reason: "uptime above limit"}
	if err := e.SendNotification(context.Background(), msg); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(dialer.sent) != 1 {
		t.Fatalf("expected 1 message got %v", len(dialer.sent))
	}

	subject := dialer.sent[0].GetHeader("Subject")
	if len(subject) != 1 || subject[0] != "[demo] WARN: uptime above limit" {
		t.Fatalf("unexpected subject %v", subject)
	}

	dialer.err = errors.New("connection refused")
	if err := e.SendNotification(context.Background(), msg); err == nil {
		t.Fatalf("expected an error")
	}
}
