/*
Package client implements the transport half of a worker session.

A Dialer opens a TCP connection with a bounded connect timeout and wraps it
in a Conn. Each Conn exchange writes one client message and blocks for one
server reply, with the configured receive timeout applied as a read deadline:

	Hello(identity, credential)   → ACK | WRONG_PASSWORD
	RequestJob()                  → NEW_JOB | NO_JOB | WRONG_PASSWORD
	SendResult(result)            → ACK

Errors fall into three groups the worker handles differently:

	wire.ErrTransport   short read/write, timeout, refused, bad opcode: reconnect
	ErrWrongPassword    credential rejected: close, retry next cycle
	ErrNoJob            nothing to do: ask again later

Conn does not retry; reconnect policy belongs to the worker.
*/
package client
