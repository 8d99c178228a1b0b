package session

import "net"

// hostAddr returns the address players should reach the host's shared view
// on: the machine's outbound-facing IP plus the server port. The UDP dial
// never sends a packet; it only asks the kernel which interface routes out.
func hostAddr(port string) string {
	return net.JoinHostPort(localIP(), port)
}

func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "localhost"
}
