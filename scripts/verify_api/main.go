// Command verify_api walks a running api and gateway through one buyer and
// dealer exchange and fails loudly on the first unexpected response.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mahaj/carmarket-chat/pkg/model"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

type LoginResponse struct {
	Token string `json:"token"`
}

func login(apiAddr, userID, role string) string {
	reqBody, _ := json.Marshal(map[string]string{"user_id": userID, "role": role})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		logger.Fatal().Err(err).Msg("login")
	}
	defer resp.Body.Close()

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		logger.Fatal().Err(err).Msg("decode login")
	}
	return loginResp.Token
}

func call(method, rawURL, token string, out interface{}) error {
	req, _ := http.NewRequest(method, rawURL, nil)
	req.Header.Add("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s %s: %d %s", method, rawURL, resp.StatusCode, body)
	}
	logger.Info().Str("method", method).Str("url", rawURL).RawJSON("body", body).Msg("ok")
	return json.Unmarshal(body, out)
}

func dial(gatewayAddr, token string) *websocket.Conn {
	u := url.URL{Scheme: "ws", Host: gatewayAddr, Path: "/ws", RawQuery: "token=" + url.QueryEscape(token)}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("dial gateway")
	}
	return c
}

func expect(c *websocket.Conn, t model.MessageType) model.Frame {
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f model.Frame
	if err := c.ReadJSON(&f); err != nil {
		logger.Fatal().Err(err).Str("want", string(t)).Msg("read frame")
	}
	if f.Type != t {
		logger.Fatal().Interface("frame", f).Str("want", string(t)).Msg("unexpected frame")
	}
	return f
}

func main() {
	apiAddr := flag.String("api", "http://localhost:8081", "api service address")
	gatewayAddr := flag.String("gateway", "localhost:8080", "gateway service address")
	flag.Parse()

	suffix := uuid.NewString()[:8]
	buyer, dealer, listing := "buyer-"+suffix, "dealer-"+suffix, "listing-"+suffix

	buyerToken := login(*apiAddr, buyer, "buyer")
	dealerToken := login(*apiAddr, dealer, "dealership")

	buyerWS := dial(*gatewayAddr, buyerToken)
	defer buyerWS.Close()
	dealerWS := dial(*gatewayAddr, dealerToken)
	defer dealerWS.Close()

	err := buyerWS.WriteJSON(model.Frame{Type: model.TypeSend, ClientRef: "1", RecipientID: dealer, ListingID: listing, Body: "Is the car still available?"})
	if err != nil {
		logger.Fatal().Err(err).Msg("send")
	}
	ack := expect(buyerWS, model.TypeAck)
	push := expect(dealerWS, model.TypeMessage)
	if push.Message.ID != ack.Message.ID {
		logger.Fatal().Int64("ack", ack.Message.ID).Int64("push", push.Message.ID).Msg("push does not match ack")
	}

	var convs []model.Conversation
	if err := call(http.MethodGet, *apiAddr+"/conversations", dealerToken, &convs); err != nil {
		logger.Fatal().Err(err).Msg("conversations")
	}
	if len(convs) != 1 || convs[0].UnreadCount != 1 {
		logger.Fatal().Interface("conversations", convs).Msg("dealer should have one unread conversation")
	}

	path := *apiAddr + "/conversations/" + buyer + "/listings/" + listing
	var msgs []model.Message
	if err := call(http.MethodGet, path+"/messages", dealerToken, &msgs); err != nil {
		logger.Fatal().Err(err).Msg("history")
	}

	var res map[string]int
	if err := call(http.MethodPost, path+"/read", dealerToken, &res); err != nil || res["updated"] != 1 {
		logger.Fatal().Err(err).Interface("result", res).Msg("mark read")
	}
	if err := call(http.MethodDelete, path, dealerToken, &res); err != nil || res["deleted"] != 1 {
		logger.Fatal().Err(err).Interface("result", res).Msg("delete")
	}

	logger.Info().Msg("all checks passed")
}
