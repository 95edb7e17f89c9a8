// Package domain define contratos e tipos de domínio do pipeline de admissão:
// reputação do cliente, configuração global, contadores por janela, sonda de saúde
// do backend e o veredito final de cada requisição.
//
// Este pacote não depende de net/http nem de implementações concretas (Redis etc.).
// A política de admissão (fail-open/fail-closed) não mora aqui: fica na camada
// application. As implementações de infra apenas devolvem erros.
package domain
