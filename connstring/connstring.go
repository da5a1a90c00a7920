// Package connstring parses mongodb:// connection strings.
package connstring

import (
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Parse parses the provided uri and returns a URI object.
func Parse(s string) (ConnString, error) {
	var p parser
	err := p.parse(s)
	if err != nil {
		return p.ConnString, errors.Wrapf(err, "error parsing uri (%s)", s)
	}
	return p.ConnString, nil
}

// ConnString represents a connection string to mongodb.
type ConnString struct {
	Original string

	AppName                   string
	AuthMechanism             string
	AuthSource                string
	Compressors               []string
	ConnectTimeout            time.Duration
	ConnectTimeoutSet         bool
	Database                  string
	HeartbeatInterval         time.Duration
	HeartbeatIntervalSet      bool
	Hosts                     []string
	Journal                   bool
	JournalSet                bool
	LocalThreshold            time.Duration
	LocalThresholdSet         bool
	MaxConnIdleTime           time.Duration
	MaxConnIdleTimeSet        bool
	MaxPoolSize               uint64
	MaxPoolSizeSet            bool
	MinPoolSize               uint64
	MinPoolSizeSet            bool
	Password                  string
	PasswordSet               bool
	ReadConcernLevel          string
	ReadPreference            string
	ReadPreferenceTagSets     []map[string]string
	MaxStaleness              time.Duration
	MaxStalenessSet           bool
	ReplicaSet                string
	ServerSelectionTimeout    time.Duration
	ServerSelectionTimeoutSet bool
	SocketTimeout             time.Duration
	SocketTimeoutSet          bool
	SSL                       bool
	SSLSet                    bool
	Username                  string
	WTimeout                  time.Duration
	WTimeoutSet               bool
	WNumber                   int
	WNumberSet                bool
	WString                   string

	Options map[string][]string
}

func (u *ConnString) String() string {
	return u.Original
}

type parser struct {
	ConnString
}

func (p *parser) parse(original string) error {
	p.Original = original

	uri := original
	if !strings.HasPrefix(uri, "mongodb://") {
		return errors.New("scheme must be \"mongodb\"")
	}
	uri = uri[len("mongodb://"):]

	if idx := strings.Index(uri, "@"); idx != -1 {
		userInfo := uri[:idx]
		uri = uri[idx+1:]

		username := userInfo
		var password string

		if u, pw, ok := splitPair(userInfo, ":"); ok {
			username = u
			password = pw
			p.PasswordSet = true
		}

		var err error
		p.Username, err = url.QueryUnescape(username)
		if err != nil {
			return errors.Wrap(err, "invalid username")
		}
		if p.PasswordSet {
			p.Password, err = url.QueryUnescape(password)
			if err != nil {
				return errors.Wrap(err, "invalid password")
			}
		}
	}

	hosts := uri
	if idx := strings.IndexAny(uri, "/?"); idx != -1 {
		hosts = uri[:idx]
		uri = uri[idx:]
	} else {
		uri = ""
	}

	if hosts == "" {
		return errors.New("must have at least 1 host")
	}

	for _, host := range strings.Split(hosts, ",") {
		err := p.addHost(host)
		if err != nil {
			return errors.Wrapf(err, "invalid host \"%s\"", host)
		}
	}

	if strings.HasPrefix(uri, "/") {
		uri = uri[1:]
		database := uri
		if idx := strings.Index(uri, "?"); idx != -1 {
			database = uri[:idx]
			uri = uri[idx:]
		} else {
			uri = ""
		}

		var err error
		p.Database, err = url.QueryUnescape(database)
		if err != nil {
			return errors.Wrap(err, "invalid database")
		}
	}

	if strings.HasPrefix(uri, "?") {
		for _, pair := range strings.FieldsFunc(uri[1:], func(r rune) bool { return r == ';' || r == '&' }) {
			err := p.addOption(pair)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *parser) addHost(host string) error {
	if host == "" {
		return errors.New("empty host")
	}

	host, err := url.QueryUnescape(host)
	if err != nil {
		return err
	}

	_, port, err := net.SplitHostPort(host)
	if err == nil {
		d, err := strconv.Atoi(port)
		if err != nil || d <= 0 || d > 65535 {
			return errors.Errorf("port must be an integer between 1 and 65535, got %q", port)
		}
	}

	p.Hosts = append(p.Hosts, host)
	return nil
}

func (p *parser) addOption(pair string) error {
	key, value, ok := splitPair(pair, "=")
	if !ok || key == "" {
		return errors.Errorf("invalid option \"%s\"", pair)
	}

	key, err := url.QueryUnescape(key)
	if err != nil {
		return errors.Wrapf(err, "invalid option key \"%s\"", key)
	}

	value, err = url.QueryUnescape(value)
	if err != nil {
		return errors.Wrapf(err, "invalid option value \"%s\"", value)
	}

	lowerKey := strings.ToLower(key)
	switch lowerKey {
	case "appname":
		p.AppName = value
	case "authmechanism":
		p.AuthMechanism = value
	case "authsource":
		p.AuthSource = value
	case "compressors":
		p.Compressors = strings.Split(value, ",")
	case "connecttimeoutms":
		ms, err := parseMS(value)
		if err != nil {
			return err
		}
		p.ConnectTimeout = ms
		p.ConnectTimeoutSet = true
	case "heartbeatintervalms", "heartbeatfrequencyms":
		ms, err := parseMS(value)
		if err != nil {
			return err
		}
		p.HeartbeatInterval = ms
		p.HeartbeatIntervalSet = true
	case "journal":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		p.Journal = b
		p.JournalSet = true
	case "localthresholdms":
		ms, err := parseMS(value)
		if err != nil {
			return err
		}
		p.LocalThreshold = ms
		p.LocalThresholdSet = true
	case "maxidletimems", "maxconnidletimems":
		ms, err := parseMS(value)
		if err != nil {
			return err
		}
		p.MaxConnIdleTime = ms
		p.MaxConnIdleTimeSet = true
	case "maxpoolsize":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid value for %s: %s", key, value)
		}
		p.MaxPoolSize = n
		p.MaxPoolSizeSet = true
	case "minpoolsize":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return errors.Errorf("invalid value for %s: %s", key, value)
		}
		p.MinPoolSize = n
		p.MinPoolSizeSet = true
	case "maxstalenessseconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.Errorf("invalid value for %s: %s", key, value)
		}
		p.MaxStaleness = time.Duration(n) * time.Second
		p.MaxStalenessSet = true
	case "readconcernlevel":
		p.ReadConcernLevel = value
	case "readpreference":
		p.ReadPreference = value
	case "readpreferencetags":
		tags := make(map[string]string)
		for _, item := range strings.Split(value, ",") {
			name, tagVal, ok := splitPair(item, ":")
			if !ok {
				return errors.Errorf("invalid value for %s: %s", key, value)
			}
			tags[name] = tagVal
		}
		p.ReadPreferenceTagSets = append(p.ReadPreferenceTagSets, tags)
	case "replicaset":
		p.ReplicaSet = value
	case "serverselectiontimeoutms":
		ms, err := parseMS(value)
		if err != nil {
			return err
		}
		p.ServerSelectionTimeout = ms
		p.ServerSelectionTimeoutSet = true
	case "sockettimeoutms":
		ms, err := parseMS(value)
		if err != nil {
			return err
		}
		p.SocketTimeout = ms
		p.SocketTimeoutSet = true
	case "ssl", "tls":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		p.SSL = b
		p.SSLSet = true
	case "w":
		if n, err := strconv.Atoi(value); err == nil {
			if n < 0 {
				return errors.New("invalid negative w value")
			}
			p.WNumber = n
			p.WNumberSet = true
		} else {
			p.WString = value
		}
	case "wtimeoutms":
		ms, err := parseMS(value)
		if err != nil {
			return err
		}
		p.WTimeout = ms
		p.WTimeoutSet = true
	default:
		// unrecognized options are preserved but not interpreted
	}

	if p.Options == nil {
		p.Options = make(map[string][]string)
	}
	p.Options[lowerKey] = append(p.Options[lowerKey], value)

	return nil
}

func splitPair(s, sep string) (string, string, bool) {
	idx := strings.Index(s, sep)
	if idx == -1 {
		return s, "", false
	}
	return s[:idx], s[idx+len(sep):], true
}

func parseMS(value string) (time.Duration, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errors.Errorf("invalid duration: %s", value)
	}
	return time.Duration(n) * time.Millisecond, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, errors.Errorf("invalid boolean: %s", value)
}
