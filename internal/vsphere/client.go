package vsphere

import (
	"context"
	"net/url"

	"github.com/pkg/errors"
	"github.com/vmware/govmomi/session"
	"github.com/vmware/govmomi/vim25"
	"github.com/vmware/govmomi/vim25/soap"
	"go.uber.org/zap"
)

type Credentials struct {
	URL      string
	Username string
	Password string
	Insecure bool
}

// Client implements the inventory and relocation calls of the balancer on top of
// a vCenter session.
type Client struct {
	vim     *vim25.Client
	session *session.Manager
}

// NewClient logs into vCenter with the given credentials.
func NewClient(ctx context.Context, credentials Credentials) (*Client, error) {
	u, err := parseUrl(credentials)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse vCenter url")
	}

	vimClient, err := vim25.NewClient(ctx, soap.NewClient(u, credentials.Insecure))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", u.Host)
	}

	manager := session.NewManager(vimClient)
	zap.S().Named("vsphere").Infof("logging into %s as %s", u.Host, credentials.Username)
	if err := manager.Login(ctx, u.User); err != nil {
		return nil, errors.Wrap(err, "failed to login to vCenter")
	}

	return &Client{vim: vimClient, session: manager}, nil
}

// NewClientFromVim wraps an already authenticated client. Close does not log it out.
func NewClientFromVim(vimClient *vim25.Client) *Client {
	return &Client{vim: vimClient}
}

// Close terminates the session opened by NewClient.
func (c *Client) Close(ctx context.Context) error {
	if c.session == nil {
		return nil
	}
	if err := c.session.Logout(ctx); err != nil {
		return errors.Wrap(err, "failed to logout from vCenter")
	}
	c.vim.CloseIdleConnections()
	return nil
}

func parseUrl(credentials Credentials) (*url.URL, error) {
	u, err := url.ParseRequestURI(credentials.URL)
	if err != nil {
		return nil, err
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/sdk"
	}
	u.User = url.UserPassword(credentials.Username, credentials.Password)
	return u, nil
}
