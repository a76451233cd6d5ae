package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisco/ticketlearn/pkg/errors"
)

func TestIDUnmarshal(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"id": 12345, "replyMessageId": "67"}`), &m))
	assert.Equal(t, ID("12345"), m.ID)
	assert.Equal(t, ID("67"), m.ReplyMessageID)

	var m2 Message
	require.NoError(t, json.Unmarshal([]byte(`{"id": "abc", "replyMessageId": null}`), &m2))
	assert.Equal(t, ID("abc"), m2.ID)
	assert.True(t, m2.ReplyMessageID.IsZero())
}

func TestStringListUnmarshal(t *testing.T) {
	var r Recipients
	require.NoError(t, json.Unmarshal([]byte(`{"from": "cs@unisco.com", "to": ["a@x.com", "b@x.com"]}`), &r))
	assert.Equal(t, StringList{"cs@unisco.com"}, r.From)
	assert.Equal(t, "a@x.com, b@x.com", r.To.Join())
}

func pageHandler(t *testing.T, fn func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		fn(w, r)
	}))
}

func TestFetchTicketPage(t *testing.T) {
	t.Run("full page signals more", func(t *testing.T) {
		srv := pageHandler(t, func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Size  int `json:"size"`
				Page  int `json:"page"`
				Input struct {
					DisplayStatusIDs []int    `json:"displayStatusIds"`
					StaffIDs         []string `json:"staffIds"`
				} `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []int{DisplayStatusResolved}, req.Input.DisplayStatusIDs)
			assert.Equal(t, []string{"91"}, req.Input.StaffIDs)

			fmt.Fprintf(w, `{"code":200,"data":{"records":[{"id":1,"title":"a"},{"id":2,"title":"b"}]}}`)
		})
		defer srv.Close()

		client, err := NewClient("test-key", WithBaseURL(srv.URL))
		require.NoError(t, err)

		tickets, hasMore, err := client.FetchTicketPage(context.Background(), 1, 2, ListFilter{
			DisplayStatusIDs: []int{DisplayStatusResolved},
			StaffIDs:         []string{"91"},
		})
		require.NoError(t, err)
		assert.Len(t, tickets, 2)
		assert.True(t, hasMore)
		assert.Equal(t, ID("1"), tickets[0].ID)
	})

	t.Run("short page signals done", func(t *testing.T) {
		srv := pageHandler(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"code":200,"data":{"records":[{"id":9}]}}`)
		})
		defer srv.Close()

		client, err := NewClient("test-key", WithBaseURL(srv.URL))
		require.NoError(t, err)

		tickets, hasMore, err := client.FetchTicketPage(context.Background(), 1, 20, ListFilter{})
		require.NoError(t, err)
		assert.Len(t, tickets, 1)
		assert.False(t, hasMore)
	})

	t.Run("application error code", func(t *testing.T) {
		srv := pageHandler(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `{"code":403,"msg":"invalid key"}`)
		})
		defer srv.Close()

		client, err := NewClient("test-key", WithBaseURL(srv.URL))
		require.NoError(t, err)

		_, _, err = client.FetchTicketPage(context.Background(), 1, 20, ListFilter{})
		require.Error(t, err)
		assert.Equal(t, errors.MalformedResponse, errors.CodeOf(err))
		assert.Contains(t, err.Error(), "invalid key")
	})

	t.Run("http failure", func(t *testing.T) {
		srv := pageHandler(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		defer srv.Close()

		client, err := NewClient("test-key", WithBaseURL(srv.URL))
		require.NoError(t, err)

		_, _, err = client.FetchTicketPage(context.Background(), 1, 20, ListFilter{})
		require.Error(t, err)
		assert.Equal(t, errors.Transport, errors.CodeOf(err))
	})
}

func TestFetchAllMessages(t *testing.T) {
	t.Run("drains pages sequentially", func(t *testing.T) {
		var pagesSeen []int
		srv := pageHandler(t, func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Size int `json:"size"`
				Page int `json:"page"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			pagesSeen = append(pagesSeen, req.Page)

			switch req.Page {
			case 1:
				// Exactly full page: client must try the next one
				records := make([]string, req.Size)
				for i := range records {
					records[i] = fmt.Sprintf(`{"id":%d}`, i+1)
				}
				fmt.Fprintf(w, `{"code":200,"data":{"records":[%s]}}`, joinRecords(records))
			default:
				fmt.Fprintf(w, `{"code":200,"data":{"records":[]}}`)
			}
		})
		defer srv.Close()

		client, err := NewClient("test-key", WithBaseURL(srv.URL))
		require.NoError(t, err)

		messages, err := client.FetchAllMessages(context.Background(), ID("t1"))
		require.NoError(t, err)
		assert.Len(t, messages, messagePageSize)
		assert.Equal(t, []int{1, 2}, pagesSeen)
	})

	t.Run("propagates transport failure", func(t *testing.T) {
		srv := pageHandler(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		defer srv.Close()

		client, err := NewClient("test-key", WithBaseURL(srv.URL))
		require.NoError(t, err)

		_, err = client.FetchAllMessages(context.Background(), ID("t1"))
		require.Error(t, err)
		assert.Equal(t, errors.Transport, errors.CodeOf(err))
	})
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("")
	require.Error(t, err)
	assert.Equal(t, errors.InvalidInput, errors.CodeOf(err))
}

func joinRecords(records []string) string {
	out := ""
	for i, r := range records {
		if i > 0 {
			out += ","
		}
		out += r
	}
	return out
}
