// Command client is a terminal chat client for one conversation about one
// listing. It logs in through the development login endpoint.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mahaj/carmarket-chat/pkg/model"
)

type LoginResponse struct {
	Token string `json:"token"`
}

type apiClient struct {
	base  string
	token string
}

func login(apiAddr, userID, role string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"user_id": userID, "role": role})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", errors.Errorf("login failed: %s", body)
	}

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", err
	}
	return loginResp.Token, nil
}

func (a *apiClient) do(method, path string, out interface{}) error {
	req, err := http.NewRequest(method, a.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.Errorf("%s %s: %d %s", method, path, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func conversationPath(counterpart, listing string) string {
	return "/conversations/" + url.PathEscape(counterpart) + "/listings/" + url.PathEscape(listing)
}

func printMessage(me string, m *model.Message) {
	who := m.SenderID
	if who == me {
		who = "you"
	}
	fmt.Printf("\r[%s] %s: %s\n> ", m.CreatedAt.Local().Format("15:04"), who, m.Body)
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "gateway service address")
	apiAddr := flag.String("api", "http://localhost:8081", "api service address")
	userID := flag.String("user", "buyer1", "user id")
	role := flag.String("role", "buyer", "role claimed at login")
	to := flag.String("to", "", "counterpart user id")
	listing := flag.String("listing", "", "listing id the conversation is about")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	if *to == "" || *listing == "" {
		logger.Fatal().Msg("-to and -listing are required")
	}

	token, err := login(*apiAddr, *userID, *role)
	if err != nil {
		logger.Fatal().Err(err).Msg("login")
	}
	api := &apiClient{base: *apiAddr, token: token}
	path := conversationPath(*to, *listing)

	showHistory := func() {
		var msgs []model.Message
		if err := api.do(http.MethodGet, path+"/messages", &msgs); err != nil {
			logger.Error().Err(err).Msg("history")
			return
		}
		for i := range msgs {
			printMessage(*userID, &msgs[i])
		}
	}
	showHistory()

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}
	header := http.Header{}
	header.Add("Authorization", "Bearer "+token)
	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		logger.Fatal().Err(err).Str("url", u.String()).Msg("dial")
	}
	defer c.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var f model.Frame
			if err := c.ReadJSON(&f); err != nil {
				logger.Info().Err(err).Msg("connection closed")
				return
			}
			switch f.Type {
			case model.TypeMessage:
				// Pushes from other conversations are only announced.
				if f.Message.SenderID == *to && f.Message.ListingID == *listing {
					printMessage(*userID, f.Message)
				} else {
					fmt.Printf("\r(new message from %s about %s)\n> ", f.Message.SenderID, f.Message.ListingID)
				}
			case model.TypeAck:
				printMessage(*userID, f.Message)
			case model.TypeError:
				fmt.Printf("\r! %s %s\n> ", f.Error, f.Detail)
			}
		}
	}()

	quit := make(chan struct{})
	go func() {
		defer close(quit)
		scanner := bufio.NewScanner(os.Stdin)
		seq := 0
		fmt.Print("> ")
		for scanner.Scan() {
			text := scanner.Text()
			switch text {
			case "":
			case "/quit":
				return
			case "/history":
				showHistory()
			case "/read":
				var res map[string]int
				if err := api.do(http.MethodPost, path+"/read", &res); err != nil {
					logger.Error().Err(err).Msg("mark read")
				} else {
					fmt.Printf("marked %d read\n", res["updated"])
				}
			case "/delete":
				var res map[string]int
				if err := api.do(http.MethodDelete, path, &res); err != nil {
					logger.Error().Err(err).Msg("delete")
				} else {
					fmt.Printf("deleted %d messages\n", res["deleted"])
				}
			default:
				seq++
				err := c.WriteJSON(model.Frame{
					Type:        model.TypeSend,
					ClientRef:   strconv.Itoa(seq),
					RecipientID: *to,
					ListingID:   *listing,
					Body:        text,
				})
				if err != nil {
					logger.Error().Err(err).Msg("write")
					return
				}
				continue
			}
			fmt.Print("> ")
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-done:
		return
	case <-quit:
	case <-interrupt:
	}

	// Close cleanly, then wait briefly for the server to hang up.
	err = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
