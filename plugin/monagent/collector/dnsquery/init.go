// SPDX-License-Identifier: GPL-3.0-or-later

package dnsquery

import (
	"errors"
	"fmt"

	"github.com/miekg/dns"
)

func (c *Collector) verifyConfig() error {
	if len(c.Domains) == 0 {
		return errors.New("no domains specified")
	}

	if !(c.Network == "" || c.Network == "udp" || c.Network == "tcp" || c.Network == "tcp-tls") {
		return fmt.Errorf("wrong network transport : %s", c.Network)
	}

	if len(c.RecordTypes) == 0 {
		return errors.New("no record types specified")
	}

	return nil
}

func (c *Collector) initServers() error {
	if len(c.Servers) != 0 {
		return nil
	}

	conf, err := dns.ClientConfigFromFile(c.resolvConf)
	if err != nil {
		return err
	}
	if len(conf.Servers) == 0 {
		return errors.New("no resolv conf nameservers")
	}

	c.Debugf("resolv conf nameservers: %v", conf.Servers)
	c.Servers = conf.Servers

	return nil
}

func (c *Collector) initRecordTypes() (map[string]uint16, error) {
	types := make(map[string]uint16)
	for _, v := range c.RecordTypes {
		rtype, ok := dns.StringToType[v]
		if !ok {
			return nil, fmt.Errorf("unknown record type : %s", v)
		}
		types[v] = rtype
	}

	return types, nil
}
