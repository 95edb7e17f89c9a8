// Package controlplane é a API administrativa do gateway.
//
// Lista registros de reputação, aplica ban/unban/seamless manualmente, lê e grava a
// GlobalConfig e expõe as estatísticas de decisão. Toda rota exige o header
// X-Admin-Key e passa por um token bucket por cliente. O caminho de admissão nunca
// depende deste pacote: ele só escreve no mesmo Redis que o gateway lê.
package controlplane
