// Package application contém os casos de uso do pipeline de admissão:
// reputação, configuração global, desafio de prova de trabalho, limite adaptativo,
// contagem por janela, escalonamento de violações e o Pipeline que os encadeia.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Pipeline.Evaluate(ctx, req) retorna um Verdict (banned/challenged/rate_limited/...).
//
// A tabela de política de falhas mora aqui e só aqui:
//   - reputação e configuração: fail-open (segue como não banido / defaults)
//   - sonda de saúde: degrada o orçamento
//   - contador: fail-closed (erro interno)
package application
