package client

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
)

// BBB is a minimal client of the BigBlueButton API of one server.
type BBB struct {
	base   string
	secret string
	http   *http.Client
}

// NewBBB returns a client for the server answering at
// https://domain/bigbluebutton/api.
func NewBBB(domain, secret string) *BBB {
	return NewBBBWithURL("https://"+domain+"/bigbluebutton/api", secret, &http.Client{Timeout: 10 * time.Second})
}

// NewBBBWithURL returns a client for an explicit API endpoint.
func NewBBBWithURL(base, secret string, client *http.Client) *BBB {
	return &BBB{base: strings.TrimSuffix(base, "/"), secret: secret, http: client}
}

// BBBFactory adapts NewBBB to structs.SessionAPIFactory.
func BBBFactory(domain, secret string) structs.SessionAPI {
	return NewBBB(domain, secret)
}

// Checksum signs an API call as the sha1 of the call name, the query string
// and the shared secret.
func Checksum(call, query, secret string) string {
	sum := sha1.Sum([]byte(call + query + secret))
	return hex.EncodeToString(sum[:])
}

type bbbResponse struct {
	ReturnCode string `xml:"returncode"`
	MessageKey string `xml:"messageKey"`
	Message    string `xml:"message"`
	Meetings   []struct {
		ID               string `xml:"meetingID"`
		Name             string `xml:"meetingName"`
		ModeratorPW      string `xml:"moderatorPW"`
		CreateTime       int64  `xml:"createTime"`
		ParticipantCount int    `xml:"participantCount"`
	} `xml:"meetings>meeting"`
	Recordings []struct {
		ID        string `xml:"recordID"`
		MeetingID string `xml:"meetingID"`
		State     string `xml:"state"`
		StartTime int64  `xml:"startTime"`
		EndTime   int64  `xml:"endTime"`
	} `xml:"recordings>recording"`
}

func (b *BBB) call(ctx context.Context, name string, params url.Values) (*bbbResponse, error) {
	query := params.Encode()
	target := fmt.Sprintf("%s/%s?%s", b.base, name, query)
	if query != "" {
		target += "&"
	}
	target += "checksum=" + Checksum(name, query, b.secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client/bbb: %s: %v", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client/bbb: %s: %v", name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client/bbb: %s: unexpected status %v", name, resp.Status)
	}

	var out bbbResponse
	if err := xml.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("client/bbb: %s: unable to decode response: %v", name, err)
	}
	if out.ReturnCode != "SUCCESS" {
		return nil, fmt.Errorf("client/bbb: %s: %s: %s", name, out.MessageKey, out.Message)
	}
	return &out, nil
}

// ListMeetings returns the meetings running on the server.
func (b *BBB) ListMeetings(ctx context.Context) ([]structs.Meeting, error) {
	resp, err := b.call(ctx, "getMeetings", url.Values{})
	if err != nil {
		return nil, err
	}

	meetings := make([]structs.Meeting, 0, len(resp.Meetings))
	for _, m := range resp.Meetings {
		meetings = append(meetings, structs.Meeting{
			ID:           m.ID,
			Name:         m.Name,
			ModeratorPW:  m.ModeratorPW,
			CreateTime:   time.UnixMilli(m.CreateTime),
			Participants: m.ParticipantCount,
		})
	}
	return meetings, nil
}

// EndMeeting forcibly ends a meeting.
func (b *BBB) EndMeeting(ctx context.Context, id, password string) error {
	params := url.Values{}
	params.Set("meetingID", id)
	params.Set("password", password)
	_, err := b.call(ctx, "end", params)
	return err
}

// ListRecordings returns the recordings in any of the given states.
func (b *BBB) ListRecordings(ctx context.Context, states ...structs.RecordingState) ([]structs.Recording, error) {
	params := url.Values{}
	if len(states) > 0 {
		names := make([]string, 0, len(states))
		for _, s := range states {
			names = append(names, string(s))
		}
		params.Set("state", strings.Join(names, ","))
	}

	resp, err := b.call(ctx, "getRecordings", params)
	if err != nil {
		return nil, err
	}

	recordings := make([]structs.Recording, 0, len(resp.Recordings))
	for _, r := range resp.Recordings {
		recordings = append(recordings, structs.Recording{
			ID:        r.ID,
			MeetingID: r.MeetingID,
			State:     structs.RecordingState(r.State),
			StartTime: time.UnixMilli(r.StartTime),
			EndTime:   time.UnixMilli(r.EndTime),
		})
	}
	return recordings, nil
}
