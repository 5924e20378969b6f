package relay

import (
	"crypto/tls"
	"fmt"
	"io/ioutil"
	"log"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

const (
	registryID    = "fleet-registry"
	projectID     = "auto-fleet-mgnt"
	region        = "europe-west1"
	algorithm     = "RS256"
	defaultServer = "ssl://mqtt.googleapis.com:8883"
	username      = "unused"
)

// NewClient connects to the broker, retrying on timeout. When
// privateKeyPath is empty the connection is made without a password.
func NewClient(brokerAddress string, deviceID string, privateKeyPath string) (mqtt.Client, error) {
	serverAddress := brokerAddress
	if serverAddress == "" {
		serverAddress = defaultServer
	}
	log.Printf("Relay: broker %v", serverAddress)

	clientID := fmt.Sprintf(
		"projects/%s/locations/%s/registries/%s/devices/%s",
		projectID, region, registryID, deviceID)

	opts := mqtt.NewClientOptions().
		AddBroker(serverAddress).
		SetClientID(clientID).
		SetUsername(username).
		SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
		SetProtocolVersion(4) // MQTT 3.1.1

	if privateKeyPath != "" {
		pass, err := signedPassword(privateKeyPath, time.Now())
		if err != nil {
			return nil, err
		}
		opts.SetPassword(pass)
	}

	client := mqtt.NewClient(opts)
	for {
		log.Printf("Relay: connecting MQTT...")
		tok := client.Connect()
		if !tok.WaitTimeout(5 * time.Second) {
			log.Println("Relay: connection timeout")
			continue
		}
		if err := tok.Error(); err != nil {
			return nil, errors.WithMessage(err, "MQTT connect failed")
		}
		log.Printf("Relay: ..connected")
		return client, nil
	}
}

// signedPassword builds the JWT used as the MQTT password.
func signedPassword(privateKeyPath string, now time.Time) (string, error) {
	keyData, err := ioutil.ReadFile(privateKeyPath)
	if err != nil {
		return "", errors.WithMessage(err, "reading private key")
	}

	var key interface{}
	switch algorithm {
	case "RS256":
		key, err = jwt.ParseRSAPrivateKeyFromPEM(keyData)
	case "ES256":
		key, err = jwt.ParseECPrivateKeyFromPEM(keyData)
	default:
		return "", errors.Errorf("unknown algorithm: %s", algorithm)
	}
	if err != nil {
		return "", errors.WithMessage(err, "parsing private key")
	}

	token := jwt.NewWithClaims(jwt.GetSigningMethod(algorithm), &jwt.StandardClaims{
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(24 * time.Hour).Unix(),
		Audience:  projectID,
	})
	pass, err := token.SignedString(key)
	if err != nil {
		return "", errors.WithMessage(err, "signing token")
	}
	return pass, nil
}
