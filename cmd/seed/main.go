package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
)

// Seed the running server with demo traders and a small sale scenario:
// three users form a referral chain and the last one buys from the sale.
func main() {
	log := logrus.New()

	baseURL := os.Getenv("SERVER_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	client := &seedClient{base: baseURL, http: &http.Client{}}

	traders := []string{"trader1", "trader2", "trader3"}
	tokens := make(map[string]string)
	addresses := make(map[string]string)

	for _, name := range traders {
		address, err := client.register(name, "password123")
		if err != nil {
			log.WithError(err).WithField("user", name).Warn("register failed, assuming user exists")
		}
		token, err := client.login(name, "password123")
		if err != nil {
			log.WithError(err).WithField("user", name).Fatal("login failed")
		}
		tokens[name] = token
		if address == "" {
			balances := map[string]string{}
			if err := client.get("/balances", token, &balances); err != nil {
				log.WithError(err).Fatal("failed to read balances")
			}
			address = balances["address"]
		}
		addresses[name] = address

		if err := client.post("/faucet", token, nil, nil); err != nil {
			log.WithError(err).WithField("user", name).Fatal("faucet failed")
		}
	}

	// trader1 <- trader2 <- trader3 referral chain.
	if err := client.post("/referrals", tokens["trader1"], map[string]string{}, nil); err != nil {
		log.WithError(err).Warn("trader1 registration skipped")
	}
	if err := client.post("/referrals", tokens["trader2"],
		map[string]string{"referrer": addresses["trader1"]}, nil); err != nil {
		log.WithError(err).Warn("trader2 registration skipped")
	}
	if err := client.post("/referrals", tokens["trader3"],
		map[string]string{"referrer": addresses["trader2"]}, nil); err != nil {
		log.WithError(err).Warn("trader3 registration skipped")
	}

	// trader3 buys 0.1 ether worth of tokens; both referrers earn a cut.
	if err := client.post("/sale/buy", tokens["trader3"],
		map[string]string{"value": "100000000000000000"}, nil); err != nil {
		log.WithError(err).Fatal("demo purchase failed")
	}

	log.Info("seeded demo traders and an opening purchase")
}

type seedClient struct {
	base string
	http *http.Client
}

func (c *seedClient) register(username, password string) (string, error) {
	var resp struct {
		Address string `json:"address"`
	}
	err := c.post("/auth/register", "", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	return resp.Address, err
}

func (c *seedClient) login(username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.post("/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &resp)
	return resp.Token, err
}

func (c *seedClient) post(path, token string, body, out any) error {
	payload := []byte("{}")
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *seedClient) get(path, token string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *seedClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("%s %s: %s (%d)", req.Method, req.URL.Path, body.Error, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
