package transport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/chat"
	"github.com/vasiliy-maslov/petcare-microservices/breeding-service/internal/transport"
	"github.com/vasiliy-maslov/petcare-microservices/pkg/identity"
)

// closedChat refuses every room; enough to see routing and status mapping.
type closedChat struct{}

func (closedChat) GetOrCreateRoom(context.Context, uuid.UUID, uuid.UUID) (*chat.Room, error) {
	return nil, chat.ErrNotParticipant
}

func (closedChat) LoadMessages(context.Context, uuid.UUID, uuid.UUID) ([]chat.Message, error) {
	return nil, chat.ErrRoomNotFound
}

func (closedChat) SendMessage(context.Context, uuid.UUID, uuid.UUID, string) (*chat.Message, error) {
	return nil, chat.ErrNotParticipant
}

func (closedChat) MarkRead(context.Context, uuid.UUID, uuid.UUID) (int64, error) {
	return 0, chat.ErrNotParticipant
}

func (closedChat) Open(context.Context, uuid.UUID, uuid.UUID) (*chat.Session, error) {
	return nil, chat.ErrNotParticipant
}

func TestNewRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := httptest.NewServer(transport.NewRouter(transport.Dependencies{
		Chat:     closedChat{},
		Registry: reg,
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(srv.URL + "/pets/mine")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	roomID := uuid.Must(uuid.NewV4())
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/chat/rooms/"+roomID.String()+"/messages", nil)
	require.NoError(t, err)
	req.Header.Set(identity.HeaderUserID, uuid.Must(uuid.NewV4()).String())
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/rooms/" + roomID.String() + "/ws?user_id=" + uuid.Must(uuid.NewV4()).String()
	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if conn != nil {
		conn.Close()
	}
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	wsResp.Body.Close()
	assert.Equal(t, http.StatusForbidden, wsResp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `breeding_http_requests_total{method="GET",route="/chat/rooms/{id}/messages",status="404"} 1`)
}
