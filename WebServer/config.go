/*************************************************************************
 * Copyright 2019 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gravwell/gcfg"
	"github.com/inhies/go-bytesize"

	"github.com/DavidBittner/http-webserver/httpd"
	"github.com/DavidBittner/http-webserver/httpd/response"
	"github.com/DavidBittner/http-webserver/version"
)

const (
	MAX_CONFIG_SIZE int64 = (1024 * 1024 * 2) //2MB, even this is crazy large

	defaultBindString     = `0.0.0.0:8080`
	defaultTimeoutMS      = 5000
	defaultMaxRequestSize = `8KB`

	envAuthKey = `WEBSERVER_AUTH_KEY`
)

var (
	ErrInvalidTimeout = errors.New("Invalid timeout")
	ErrInvalidMaxSize = errors.New("Invalid Max-Request-Size")
	ErrMissingRoot    = errors.New("Root could not be resolved")
)

type cfgType struct {
	Global struct {
		Bind_String      string //IP port pair 0.0.0.0:8080
		Root             string
		Templates        string
		Index            []string
		Read_Timeout     int //milliseconds
		Write_Timeout    int //milliseconds
		Max_Request_Size string
		Max_Connections  int
		Log_Level        string
		Log_File         string
	}
	//rules are applied in lexical order of their section names
	Redirect map[string]*struct {
		Regex string
		URL   string
		Code  int
	}
	Auth struct {
		File_Name   string
		Private_Key string
	}
}

func GetConfig(path string) (*cfgType, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := fin.Stat()
	if err != nil {
		fin.Close()
		return nil, err
	}
	//This is just a sanity check
	if fi.Size() > MAX_CONFIG_SIZE {
		fin.Close()
		return nil, errors.New("Config File Far too large")
	}
	content := make([]byte, fi.Size())
	n, err := fin.Read(content)
	fin.Close()
	if int64(n) != fi.Size() {
		return nil, errors.New("Failed to read config file")
	}

	var c cfgType
	if err := gcfg.ReadStringInto(&c, string(content)); err != nil {
		return nil, err
	}
	if err := c.loadDefaults(); err != nil {
		return nil, err
	}
	if err := verifyConfig(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *cfgType) loadDefaults() error {
	if c.Global.Bind_String == `` {
		c.Global.Bind_String = defaultBindString
	}
	if c.Global.Root == `` {
		wd, err := os.Getwd()
		if err != nil {
			return ErrMissingRoot
		}
		c.Global.Root = wd
	}
	if c.Global.Read_Timeout == 0 {
		c.Global.Read_Timeout = defaultTimeoutMS
	}
	if c.Global.Write_Timeout == 0 {
		c.Global.Write_Timeout = defaultTimeoutMS
	}
	if c.Global.Max_Request_Size == `` {
		c.Global.Max_Request_Size = defaultMaxRequestSize
	}
	//the digest private key may ride in via the environment rather than
	//sitting in a world readable config file
	if c.Auth.Private_Key == `` {
		if v, err := loadEnv(envAuthKey); err == nil {
			c.Auth.Private_Key = v
		}
	}
	return nil
}

func verifyConfig(c *cfgType) error {
	if c.Global.Read_Timeout < 0 || c.Global.Write_Timeout < 0 {
		return ErrInvalidTimeout
	}
	if _, err := bytesize.Parse(c.Global.Max_Request_Size); err != nil {
		return ErrInvalidMaxSize
	}
	root, err := filepath.Abs(c.Global.Root)
	if err != nil {
		return ErrMissingRoot
	}
	c.Global.Root = root
	for k, v := range c.Redirect {
		if _, err := response.NewRule(v.Regex, v.URL, v.Code); err != nil {
			return errors.New("Invalid redirect " + k + ": " + err.Error())
		}
	}
	return nil
}

// MaxRequestSize returns the parsed size cap in bytes.
func (c *cfgType) MaxRequestSize() int64 {
	sz, err := bytesize.Parse(c.Global.Max_Request_Size)
	if err != nil {
		return 8 * 1024
	}
	return int64(sz)
}

// Redirects compiles the ordered rule set; section names sort lexically.
func (c *cfgType) Redirects() (rs response.RuleSet, err error) {
	names := make([]string, 0, len(c.Redirect))
	for k := range c.Redirect {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		v := c.Redirect[k]
		var r response.Rule
		if r, err = response.NewRule(v.Regex, v.URL, v.Code); err != nil {
			return
		}
		rs = append(rs, r)
	}
	return
}

// ServerConfig resolves the raw file values into the httpd configuration.
func (c *cfgType) ServerConfig() (sc httpd.ServerConfig, err error) {
	rs, err := c.Redirects()
	if err != nil {
		return
	}
	sc = httpd.ServerConfig{
		BindString:     c.Global.Bind_String,
		Root:           c.Global.Root,
		TemplateDir:    c.Global.Templates,
		Indexes:        append([]string(nil), c.Global.Index...),
		ReadTimeout:    time.Duration(c.Global.Read_Timeout) * time.Millisecond,
		WriteTimeout:   time.Duration(c.Global.Write_Timeout) * time.Millisecond,
		MaxRequestSize: c.MaxRequestSize(),
		MaxConnections: int64(c.Global.Max_Connections),
		Redirects:      rs,
		AuthFileName:   c.Auth.File_Name,
		AuthPrivateKey: c.Auth.Private_Key,
		Server:         version.ServerString(),
		ServerName:     version.ServerName,
	}
	return
}
