package sip

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"os"
	"runtime"
	"strings"

	"sdego/cl"
	"sdego/config"
	"sdego/global"
	"sdego/registrar"
	"sdego/rtp"
)

var (
	Sessions ConcurrentMapMutex

	server *SipServer
)

// SipServer is the session router: the single shared UDP endpoint all
// peer sessions multiplex, plus the collaborators they need.
type SipServer struct {
	conn      *net.UDPConn
	cfg       *config.Config
	registrar *registrar.Directory
	audio     *rtp.Repo
}

func StartServer(cfg *config.Config, reg *registrar.Directory, sup, htp int) *net.UDPConn {
	fmt.Print("Initializing Global Parameters...")
	Sessions = NewConcurrentMapMutex()

	global.SipUdpPort = sup
	global.HttpTcpPort = htp

	global.InitializeEngine()
	fmt.Println("Ready!")

	fmt.Printf("Loading audio files in directory: %s\n", cfg.MediaDir)
	audio := rtp.NewRepo(cfg.MediaDir)
	fmt.Printf("Audio files count: %d \n", audio.FilesCount())

	triedAlready := false
tryAgain:
	fmt.Print("Attempting to listen on SIP...")
	serverUDPListener, err := global.StartListening(global.ServerIPv4, global.SipUdpPort)
	if err != nil {
		if triedAlready {
			fmt.Println(err)
			os.Exit(2)
		}
		fmt.Printf("Error: %s\n", err)
		if opErr, ok := err.(*net.OpError); ok && strings.Contains(opErr.Error(), "bind") {
			global.ServerIPv4 = getlocalIPv4()
			triedAlready = true
			goto tryAgain
		}
	}

	server = &SipServer{conn: serverUDPListener, cfg: cfg, registrar: reg, audio: audio}

	startWorkers(server)
	udpLoopWorkers(server)
	fmt.Println("Success: UDP", serverUDPListener.LocalAddr().String())

	fmt.Print("Setting Rate Limiter...")
	global.SessionLimiter = cl.NewSessionLimiter(cfg.RateLimit, global.Prometrics, &global.WtGrp)
	fmt.Printf("OK (%d)\n", cfg.RateLimit)

	return serverUDPListener
}

func getlocalIPv4() net.IP {
	fmt.Print("Checking Interfaces...")
	serverIPs, err := global.GetLocalIPs()
	if err != nil {
		fmt.Println("Failed to find an IPv4 interface:", err)
		os.Exit(1)
	}
	serverIP := serverIPs[0]
	fmt.Println("Found:", serverIP)
	return serverIP
}

// =================================================================================================
// Worker Pattern

var (
	WorkerCount = runtime.NumCPU()
	QueueSize   = 500
)

type Packet struct {
	sourceAddr *net.UDPAddr
	buffer     *[]byte
	bytesCount int
}

// packetQueues is indexed by a hash of the source address, so datagrams
// of one peer stay on one worker and keep their arrival order while
// distinct peers interleave freely.
var packetQueues []chan Packet

func startWorkers(srv *SipServer) {
	packetQueues = make([]chan Packet, WorkerCount)
	global.WtGrp.Add(WorkerCount)
	for i := 0; i < WorkerCount; i++ {
		packetQueues[i] = make(chan Packet, QueueSize)
		go worker(srv, packetQueues[i])
	}
}

func udpLoopWorkers(srv *SipServer) {
	global.WtGrp.Add(1)
	go func() {
		defer func() {
			global.WtGrp.Done()
			if r := recover(); r != nil {
				global.LogCallStack(r)
				udpLoopWorkers(srv)
			}
		}()
		for {
			buf := global.BufferPool.Get().(*[]byte)
			n, addr, err := srv.conn.ReadFromUDP(*buf)
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				fmt.Println(err)
				continue
			}
			idx := queueIndex(addr.String())
			packetQueues[idx] <- Packet{sourceAddr: addr, buffer: buf, bytesCount: n}
		}
	}()
}

func queueIndex(addr string) int {
	h := fnv.New32a()
	h.Write([]byte(addr))
	return int(h.Sum32() % uint32(WorkerCount))
}

func worker(srv *SipServer, queue <-chan Packet) {
	defer global.WtGrp.Done()
	for packet := range queue {
		processPacket(srv, packet)
	}
}

// processPacket routes one datagram into its peer session, creating the
// session on first contact. A hostile payload must never take the worker
// down, hence the recover.
func processPacket(srv *SipServer, packet Packet) {
	defer func() {
		global.BufferPool.Put(packet.buffer)
		if r := recover(); r != nil {
			global.LogCallStack(r)
		}
	}()

	pdu := (*packet.buffer)[:packet.bytesCount]
	if len(pdu) == 0 {
		return
	}

	localUDP := global.GenerateUDPSocket(srv.conn)
	ky := SessionKey{
		LocalHost:  localUDP.IP.String(),
		LocalPort:  localUDP.Port,
		RemoteHost: packet.sourceAddr.IP.String(),
		RemotePort: packet.sourceAddr.Port,
	}

	ss, ok := Sessions.Load(ky.String())
	if !ok {
		if !global.SessionLimiter.AcceptNewSession() {
			global.LogWarning(global.LTSIPStack, "Session rate limit exceeded - datagram dropped from "+packet.sourceAddr.String())
			return
		}
		ss = NewSipSession(srv, ky, packet.sourceAddr)
		Sessions.Store(ky.String(), ss)
	}
	ss.HandleIn(pdu)
}
