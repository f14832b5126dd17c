/*
# Software Name : SIP Decoy Endpoint (SDE)
# SPDX-FileCopyrightText: Copyright (c) Orange Business - OINIS/Services/NSF
# SPDX-License-Identifier: Apache-2.0
#
# This software is distributed under the Apache-2.0
# See the "LICENSES" directory for more details.
#
# Authors:
# - Moatassem Talaat <moatassem.talaat@orange.com>

---
*/

package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"sdego/config"
	"sdego/global"
	"sdego/prometheus"
	"sdego/registrar"
	"sdego/sip"
	"sdego/webserver"
)

// environment variables
const (
	Own_IP_IPv4     string = "server_ipv4"
	Own_SIP_UdpPort string = "sip_udp_port"
	Own_Http_Port   string = "http_port"
	Config_Path     string = "config_path"
)

func main() {
	greeting()
	global.Prometrics = prometheus.NewMetrics(global.ServerName)

	sipuport, httpport, cfg := checkArgs()
	global.SessionSustainTimeout = time.Duration(cfg.SustainTimeout) * time.Second

	directory := registrar.NewDirectory()
	if cfg.RegistrationsDB != "" {
		if err := directory.OpenJournal(cfg.RegistrationsDB); err != nil {
			fmt.Println("Cannot open registration journal:", err)
			os.Exit(3)
		}
		defer directory.Close()
	}

	conn := sip.StartServer(cfg, directory, sipuport, httpport)
	defer conn.Close() //close SIP server connection
	webserver.StartWS(directory, global.ServerIPv4)
	global.WtGrp.Wait()
}

func greeting() {
	fmt.Printf("Welcome to %s - Product of %s 2025\n", global.ServerName, global.ASCIIPascal(global.EntityName))
}

func checkArgs() (sipuport, httpport int, cfg *config.Config) {
	ipv4, ok := os.LookupEnv(Own_IP_IPv4)
	if !ok {
		fmt.Println("No self IPv4 address provided!")
		os.Exit(1)
	}
	global.ServerIPv4 = net.ParseIP(ipv4)

	sup := os.Getenv(Own_SIP_UdpPort)
	sipuport, _ = global.Str2IntDefaultMinMax(sup, global.DefaultSipPort, 1024, 65536)

	hp := os.Getenv(Own_Http_Port)
	httpport, _ = global.Str2IntDefaultMinMax(hp, global.DefaultHttpPort, 79, 9999)

	cp, ok := os.LookupEnv(Config_Path)
	if !ok {
		fmt.Println("No configuration file provided!")
		os.Exit(2)
	}

	var err error
	cfg, err = config.Load(cp)
	if err != nil {
		fmt.Println("Cannot load configuration:", err)
		os.Exit(2)
	}

	return
}
